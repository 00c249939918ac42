package unit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linerelay/linerelay/internal/chat"
)

func newNamedSession(name string) (*chat.Session, *fakeTransport) {
	transport := newFakeTransport()
	sess := chat.NewSession(transport)
	sess.SetUsername(name)
	return sess, transport
}

func TestRegistryAddRemoveLen(t *testing.T) {
	registry := chat.NewRegistry()
	sess, _ := newNamedSession("alice")

	assert.Equal(t, 0, registry.Len())

	registry.Add(sess)
	assert.Equal(t, 1, registry.Len())

	registry.Remove(sess)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	registry := chat.NewRegistry()
	sess, _ := newNamedSession("alice")

	registry.Add(sess)
	registry.Remove(sess)
	registry.Remove(sess)

	assert.Equal(t, 0, registry.Len())
}

func TestRegistryBroadcastExcludesSender(t *testing.T) {
	registry := chat.NewRegistry()
	alice, aliceT := newNamedSession("alice")
	bob, bobT := newNamedSession("bob")
	carol, carolT := newNamedSession("carol")
	registry.Add(alice)
	registry.Add(bob)
	registry.Add(carol)

	registry.Broadcast("alice: hi", alice)

	assert.Empty(t, aliceT.lines(), "sender must not receive its own message")
	assert.Equal(t, []string{"alice: hi"}, bobT.lines())
	assert.Equal(t, []string{"alice: hi"}, carolT.lines())
}

func TestRegistryBroadcastNilReachesEveryone(t *testing.T) {
	registry := chat.NewRegistry()
	alice, aliceT := newNamedSession("alice")
	bob, bobT := newNamedSession("bob")
	registry.Add(alice)
	registry.Add(bob)

	registry.Broadcast("Admin: maintenance at noon", nil)

	assert.Equal(t, []string{"Admin: maintenance at noon"}, aliceT.lines())
	assert.Equal(t, []string{"Admin: maintenance at noon"}, bobT.lines())
}

func TestRegistryFindByUsername(t *testing.T) {
	registry := chat.NewRegistry()
	alice, _ := newNamedSession("alice")
	registry.Add(alice)

	assert.Same(t, alice, registry.FindByUsername("alice"))
	assert.Nil(t, registry.FindByUsername("nobody"))

	registry.Remove(alice)
	assert.Nil(t, registry.FindByUsername("alice"))
}

func TestRegistryKick(t *testing.T) {
	registry := chat.NewRegistry()
	alice, aliceT := newNamedSession("alice")
	bob, _ := newNamedSession("bob")
	registry.Add(alice)
	registry.Add(bob)

	require.True(t, registry.Kick("alice", chat.ReasonAdministrator))

	assert.Equal(t, 1, registry.Len())
	assert.Nil(t, registry.FindByUsername("alice"))
	assert.Equal(t, 1, aliceT.closeCount())
	require.Len(t, aliceT.lines(), 1)
	assert.Equal(t, chat.DisconnectNotice(chat.ReasonAdministrator), aliceT.lines()[0])

	// bob stays registered and untouched.
	assert.Same(t, bob, registry.FindByUsername("bob"))
}

func TestRegistryKickUnknownUserIsNoOp(t *testing.T) {
	registry := chat.NewRegistry()
	alice, aliceT := newNamedSession("alice")
	registry.Add(alice)

	assert.False(t, registry.Kick("ghost", chat.ReasonAdministrator))
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 0, aliceT.closeCount())
}

func TestRegistryDisconnectAllEmptiesRegistry(t *testing.T) {
	registry := chat.NewRegistry()
	var transports []*fakeTransport
	for i := 0; i < 5; i++ {
		sess, transport := newNamedSession(fmt.Sprintf("user%d", i))
		registry.Add(sess)
		transports = append(transports, transport)
	}

	registry.DisconnectAll(chat.ReasonServerShutdown)

	assert.Equal(t, 0, registry.Len())
	for _, transport := range transports {
		assert.Equal(t, 1, transport.closeCount())
	}
}

func TestRegistryConcurrentKickAndSelfRemoval(t *testing.T) {
	registry := chat.NewRegistry()
	sess, transport := newNamedSession("alice")
	registry.Add(sess)

	// A client-side close and an admin kick land at the same time; exactly
	// one teardown sequence must happen.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		registry.Remove(sess)
		sess.Disconnect(chat.ReasonConnectionClosed)
	}()
	go func() {
		defer wg.Done()
		registry.Kick("alice", chat.ReasonAdministrator)
	}()
	wg.Wait()

	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 1, transport.closeCount(), "transport closed exactly once")
	assert.LessOrEqual(t, len(transport.lines()), 1, "at most one disconnect notice")
}

func TestRegistryConcurrentOperationsDoNotCorrupt(t *testing.T) {
	registry := chat.NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sess, _ := newNamedSession(fmt.Sprintf("user%d", n))
			registry.Add(sess)
			registry.Broadcast("hello", sess)
			registry.Remove(sess)
			sess.Disconnect(chat.ReasonConnectionClosed)
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				registry.Broadcast("Admin: ping", nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, registry.Len())
}
