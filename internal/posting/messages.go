package posting

// Operator-facing texts. None of them embeds error details.
const (
	textWelcome         = "Hi! What shall we do?"
	btnNewPost          = "📝 New post"
	textChooseGroup     = "Choose a group:"
	textGroupNotFound   = "Group not found."
	textChooseTopic     = "Choose a topic:"
	textSendPost        = "Send the post text and, optionally, a photo or video."
	textReady           = "The post is ready to send. Send any message to confirm."
	textPostSent        = "Post sent."
	textPublishFailed   = "Failed to send the post."
	textCancelled       = "Operation cancelled."
	textNothingToCancel = "Nothing to cancel."
	textStaleButton     = "This button is no longer active."
	textMalformedButton = "Invalid button."
	textUnsupported     = "Unsupported action."
	textConfirmWithText = "Send a text message to confirm, or /cancel."
	textUseButtons      = "Please choose using the buttons above, or /cancel."
	textUnknownInput    = "Send /start to begin."
	textJournalDisabled = "Publication journal is disabled."
	textJournalEmpty    = "Nothing has been published yet."
	textJournalFailed   = "Could not read the publication journal."
)
