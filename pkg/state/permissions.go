package state

// a bitmap representing a set of capabilities
type Permission uint64

const (
	PermChat    Permission = 1 << iota
	PermPublish            // 2
)

var BuiltInPerms = map[string]Permission{
	"chat":    PermChat,
	"publish": PermPublish,
}

func (p Permission) Has(flag Permission) bool {
	return p&flag == flag
}
