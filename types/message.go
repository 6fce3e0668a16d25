package types

// Role 消息角色
type Role string

const (
	RoleSales    Role = "sales"    // The (human or reference) sales agent
	RoleCustomer Role = "customer" // The simulated customer persona
)

// Message 对话历史中的一条消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
