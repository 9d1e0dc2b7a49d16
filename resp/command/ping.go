package command

// Ping asks the server to answer PONG, or to echo Message when given
type Ping struct {
	Message []byte
}

// Name returns "ping"
func (c *Ping) Name() string { return "ping" }

// PING [message]
func parsePing(args [][]byte) (Command, error) {
	switch len(args) {
	case 0:
		return &Ping{}, nil
	case 1:
		return &Ping{Message: args[0]}, nil
	}
	return nil, &ArgNumError{Name: "ping"}
}

func init() {
	register("PING", parsePing, -1)
}
