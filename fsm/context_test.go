package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/pitchsim/testutil"
	"github.com/BaSui01/pitchsim/types"
)

func TestContext_AppendMessagePreservesOrder(t *testing.T) {
	m := NewDefaultMachine(nil)
	c := m.NewContext("sess-ctx")

	c.AppendMessage(types.RoleSales, "Hi, how is the quarter going?")
	c.AppendMessage(types.RoleCustomer, "Busy. What is this about?")
	c.AppendMessage(types.RoleSales, "Fair question, two minutes is all I need.")

	testutil.AssertMessagesEqual(t, []types.Message{
		{Role: types.RoleSales, Content: "Hi, how is the quarter going?"},
		{Role: types.RoleCustomer, Content: "Busy. What is this about?"},
		{Role: types.RoleSales, Content: "Fair question, two minutes is all I need."},
	}, c.History)
}

func TestContext_ObjectionBookkeeping(t *testing.T) {
	m := NewDefaultMachine(nil)
	c := m.NewContext("sess-obj")

	assert.Nil(t, c.LastTransition())

	c.RaiseObjection("price too high")
	c.RaiseObjection("no budget this quarter")
	c.ResolveObjection("price too high")

	assert.Len(t, c.ObjectionsRaised, 2)
	assert.Len(t, c.ObjectionsResolved, 1)
}
