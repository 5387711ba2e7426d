// Package greeting is the Prompt Heist greeting store: one string field kept
// in the contract's default object.
package greeting

import (
	"errors"

	"github.com/govm-net/promptheist/core"
)

// DefaultGreeting is stored when the contract is deployed.
const DefaultGreeting = "Prompt Heist contract is live"

const greetingField = "greeting"

// Initialize stores the default greeting
func Initialize(ctx core.Context) {
	obj, err := ctx.GetObject(core.ObjectID{})
	core.Assert(err)
	core.Assert(obj.Set(greetingField, DefaultGreeting))
	ctx.Log("initialized", "greeting", DefaultGreeting)
}

// Hello returns the current greeting
func Hello(ctx core.Context) string {
	obj, err := ctx.GetObject(core.ObjectID{})
	core.Assert(err)

	var greeting string
	err = obj.Get(greetingField, &greeting)
	if errors.Is(err, core.ErrFieldNotFound) {
		return DefaultGreeting
	}
	core.Assert(err)
	return greeting
}

// SetGreeting replaces the greeting. Any string is accepted, including "".
func SetGreeting(ctx core.Context, greeting string) {
	obj, err := ctx.GetObject(core.ObjectID{})
	core.Assert(err)
	core.Assert(obj.Set(greetingField, greeting))
	ctx.Log("greeting_set", "greeting", greeting, "sender", ctx.Sender())
}
