package command

// Get reads the value of a key
type Get struct {
	Key string
}

// Name returns "get"
func (c *Get) Name() string { return "get" }

// Set writes the value of a key, overwriting any previous value
type Set struct {
	Key   string
	Value []byte
}

// Name returns "set"
func (c *Set) Name() string { return "set" }

// GET key
func parseGet(args [][]byte) (Command, error) {
	return &Get{Key: string(args[0])}, nil
}

// SET key value
func parseSet(args [][]byte) (Command, error) {
	return &Set{Key: string(args[0]), Value: args[1]}, nil
}

func init() {
	register("GET", parseGet, 2)
	register("SET", parseSet, 3)
}
