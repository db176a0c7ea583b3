package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView    Action = "view"
	ActionList    Action = "list"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRecover Action = "recover"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
	ActionManage  Action = "manage"
)
