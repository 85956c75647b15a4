package state

import "fmt"

// MasterOff deactivates all routing. It is always sent with value 0.
const MasterOff = "master_off"

// Command is one instruction for the control endpoint.
type Command struct {
	Name  string `json:"cmd"`
	Value int    `json:"val"`
}

func NewCommand(sel Selector, value int) Command {
	return Command{Name: string(sel), Value: value}
}

func MasterOffCommand() Command {
	return Command{Name: MasterOff, Value: 0}
}

func (c Command) String() string {
	return fmt.Sprintf("cmd=%s&val=%d", c.Name, c.Value)
}
