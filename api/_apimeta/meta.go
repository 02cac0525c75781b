package _apimeta

// CallerInfo describes who is asking. Owners authenticate with the shared
// secret; everyone else is a gallery client following an order link.
type CallerInfo struct {
	IsOwner bool
	Token   string
}
