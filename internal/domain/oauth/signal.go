package oauth

// Signal is anything the popup side can deliver to a pending flow.
type Signal interface {
	signal()
}

// RedirectSignal is the provider redirect hitting the callback route. Exactly
// one of Code, Token or Error is normally set.
type RedirectSignal struct {
	State string
	Code  string
	Token string
	Error string
}

// MessageSignal is the cross-window message tagged success or error.
type MessageSignal struct {
	Success bool
	Error   string
}

// PopupClosedSignal means the popup went away before anything else arrived.
type PopupClosedSignal struct{}

func (RedirectSignal) signal()    {}
func (MessageSignal) signal()     {}
func (PopupClosedSignal) signal() {}

// SignalRequest is the JSON form of MessageSignal / PopupClosedSignal.
type SignalRequest struct {
	Kind    string `json:"kind" binding:"required,oneof=message popup_closed"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ToSignal converts the request into a typed signal.
func (r SignalRequest) ToSignal() Signal {
	if r.Kind == "popup_closed" {
		return PopupClosedSignal{}
	}
	return MessageSignal{Success: r.Success, Error: r.Error}
}
