package presenter

import (
	"pokiface/api/internal/match/types"
	"pokiface/api/internal/upload"
)

// UI is everything the controller needs from a screen. Calls are serialized by the
// controller; implementations must not call back into it synchronously.
type UI interface {
	ShowCredentialPrompt(saved string)
	HideCredentialPrompt()

	ShowUserImage(f upload.File)
	ShowLoading()
	HideLoading()

	// ShowMatch fills in name, artwork and description; they stay hidden until revealed.
	ShowMatch(m types.Match)
	RevealArtwork()
	RevealDescription()

	ShowToast(kind ToastKind, msg string)
	HideToast(kind ToastKind)

	Share(text string) error

	// Clear returns the screen to the upload prompt.
	Clear()
}
