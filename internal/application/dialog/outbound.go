package dialog

// Outbound is a message the engine instructs the transport to deliver.
// The transport converts these into Telegram API calls; the engine never
// touches the wire.
type Outbound interface {
	outbound()
}

// Button is one inline keyboard button carrying a callback token.
type Button struct {
	Text string
	Data string
}

// TextMessage sends a plain or formatted text message, optionally with an
// inline keyboard.
type TextMessage struct {
	Text      string
	ParseMode string
	Keyboard  [][]Button
}

// PhotoMessage sends a photo by file path with a caption.
type PhotoMessage struct {
	Path      string
	Caption   string
	ParseMode string
}

// EditMessage replaces the text of a previously sent prompt, removing its
// keyboard. Used to retract stale quiz questions after an answer.
type EditMessage struct {
	MessageID int
	Text      string
	ParseMode string
}

// DeleteMessage retracts a previously sent prompt entirely.
type DeleteMessage struct {
	MessageID int
}

// Alert shows a transient callback notification instead of a chat message.
type Alert struct {
	Text string
}

// MenuMessage sends a text message together with a persistent reply
// keyboard (the main menu).
type MenuMessage struct {
	Text     string
	MenuRows [][]string
}

func (TextMessage) outbound()   {}
func (PhotoMessage) outbound()  {}
func (EditMessage) outbound()   {}
func (DeleteMessage) outbound() {}
func (Alert) outbound()         {}
func (MenuMessage) outbound()   {}
