package domain

// Cart topics
const (
	TopicCartAdd    = "cart:add"
	TopicCartRemove = "cart:remove"
	TopicCartUpdate = "cart:update"
	TopicCartClear  = "cart:clear"
)

// TopicSessionChange carries SessionChange whenever sign-in state changes.
const TopicSessionChange = "auth:change"

// TopicStorageChange carries storage.Change for writes made by another process.
const TopicStorageChange = "storage:change"

var CartTopics = []string{
	TopicCartAdd,
	TopicCartRemove,
	TopicCartUpdate,
	TopicCartClear,
}

// CartEvent is published on add, remove and update.
type CartEvent struct {
	Product   CartLine   `json:"product"`
	CartItems []CartLine `json:"cartItems,omitempty"`
}

// CartClearedEvent is published on clear.
type CartClearedEvent struct {
	PreviousCartSize int `json:"previousCartSize"`
}

// Session change types
const (
	SessionLogin    = "login"
	SessionRegister = "register"
	SessionLogout   = "logout"
)

// SessionChange is dispatched by the session manager.
type SessionChange struct {
	Type string   `json:"type"`
	User *Session `json:"user,omitempty"`
}
