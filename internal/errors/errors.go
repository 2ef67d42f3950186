package errors

import "fmt"

var (
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrInvalidConversation  = fmt.Errorf("invalid conversation config")
	ErrMissingKeyMaterial   = fmt.Errorf("missing key material")
	ErrRevokeNotPermitted   = fmt.Errorf("not permitted to revoke message")
	ErrDecryption           = fmt.Errorf("decryption failed")
	ErrTransportNotStarted  = fmt.Errorf("transport not started")
	ErrAlreadySubscribed    = fmt.Errorf("already subscribed")
	ErrNotFound             = fmt.Errorf("not found")
	ErrUnknownSuite         = fmt.Errorf("unknown crypto suite")
)
