package users

// User-facing messages of the users API. Clients match on these strings.
const (
	MsgPong           = "pong!"
	MsgInvalidPayload = "Invalid payload."
	MsgUserNotFound   = "User does not exist."
	MsgEmailExists    = "Sorry. That email already exists."
	MsgUsernameExists = "Sorry. That username already exists."
)

// CreateUserRequest is the body of POST /users and the form of POST /.
// Every field is required; a missing key decodes to "" and fails validation.
// @Description Request body for creating a user
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=128" example:"michael"`
	Email    string `json:"email" validate:"required,email,max=128" example:"michael@mherman.org"`
	Password string `json:"password" validate:"required,max=72" example:"greaterthaneight"`
}

// UserResponse is the public JSON shape of a user. There is no password field.
// @Description User information
type UserResponse struct {
	ID       int64  `json:"id" example:"1"`
	Username string `json:"username" example:"dash"`
	Email    string `json:"email" example:"dstander@gmail.com"`
	Active   bool   `json:"active" example:"true"`
}

// MessageResponse is the success envelope carrying only a message.
type MessageResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"pong!"`
}

// UserListData wraps the users collection inside the data envelope.
type UserListData struct {
	Users []UserResponse `json:"users"`
}

// UserListResponse is the envelope of GET /users.
type UserListResponse struct {
	Status string       `json:"status" example:"success"`
	Data   UserListData `json:"data"`
}

// UserDetailResponse is the envelope of GET /users/{id}.
type UserDetailResponse struct {
	Status string       `json:"status" example:"success"`
	Data   UserResponse `json:"data"`
}
