package ws

import (
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/tcriess/lightspeed-code/filter"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/types"
)

func (c *Client) filterEnv(event *types.Event) filter.Env {
	env := filter.Env{
		Created:       event.Created.UnixMilli(),
		Name:          event.Name,
		AsInt:         filter.AsInt,
		AsFloat:       filter.AsFloat,
		AsStringSlice: filter.AsStringSlice,
		AsIntSlice:    filter.AsIntSlice,
		AsFloatSlice:  filter.AsFloatSlice,
	}
	env.Room.Id = event.RoomId
	env.Room.Name = c.hub.Room.Name
	env.Room.Tags = map[string]string(c.hub.Room.Tags)
	if c.hub.Room.Owner != nil {
		env.Room.Owner = filter.User{
			Id:         c.hub.Room.Owner.Id,
			Name:       c.hub.Room.Owner.Name,
			LastOnline: c.hub.Room.Owner.LastOnline.UnixMilli(),
		}
	}
	env.Source.User = filter.User{
		Id:   event.OriginId,
		Name: event.OriginName,
	}
	env.Target.User = filter.User{
		Id:         c.user.Id,
		Name:       c.user.Name,
		LastOnline: c.user.LastOnline.UnixMilli(),
	}
	env.Target.Client.SessionId = c.sessionId
	return env
}

// RunFilterEvent evaluates the pre-compiled target filter program against
// this client. A nil program matches every client, an evaluation error
// excludes the client.
func (c *Client) RunFilterEvent(event *types.Event, prog *vm.Program) bool {
	if prog == nil {
		return true
	}
	res, err := expr.Run(prog, c.filterEnv(event))
	if err != nil {
		globals.AppLogger.Error("could not run filter", "error", err)
		return false
	}
	matches, ok := res.(bool)
	return ok && matches
}

// EvaluateFilterEvent compiles and runs the event's target filter against a
// single client (used outside the hub fan-out, where no shared compiled
// program exists).
func (c *Client) EvaluateFilterEvent(event *types.Event) bool {
	if event.TargetFilter == "" {
		return true
	}
	prog, err := expr.Compile(event.TargetFilter, expr.Env(filter.Env{}))
	if err != nil {
		globals.AppLogger.Error("could not compile filter", "error", err)
		return false
	}
	return c.RunFilterEvent(event, prog)
}
