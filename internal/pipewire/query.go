package pipewire

import (
	"context"
)

// Client answers metadata queries, opening a fresh Session for each one.
// Nothing is cached between calls.
type Client struct {
	cfg    Config
	logger Logger

	// open is replaced in tests.
	open func(ctx context.Context, cfg Config, logger Logger) (*Session, error)
}

// NewClient creates a query client. logger may be nil.
func NewClient(cfg Config, logger Logger) *Client {
	return &Client{cfg: cfg, logger: logger, open: OpenSession}
}

// queryState is shared by the listeners of one query and read after the loop
// stops. It is only touched from inside MainLoop.Run.
type queryState struct {
	done  bool
	props *Properties
}

// NodeProperties returns the property set the registry announces for nodeID.
//
// A node that is not announced before the sync barrier is acknowledged yields
// (nil, nil): a vanished device is not an error.
//
// Parameters:
//   - ctx: Cancels the wait; its deadline bounds it
//   - nodeID: Global id of the node
//
// Returns:
//   - *Properties: The node's properties, or nil if it is absent
//   - error: ErrConnectionFailed, ErrTimeout, ErrDisconnected or ErrProtocol
func (c *Client) NodeProperties(ctx context.Context, nodeID uint32) (*Properties, error) {
	session, err := c.open(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return queryNode(ctx, session, nodeID)
}

// queryNode runs the barrier protocol on an open session.
func queryNode(ctx context.Context, session *Session, nodeID uint32) (*Properties, error) {
	state := &queryState{}

	// Issue the barrier before attaching listeners: nothing is read from the
	// socket until the loop runs, so no reply can be missed.
	token, err := session.Core().Sync(CoreID)
	if err != nil {
		return nil, err
	}

	session.AddCoreListener(CoreEvents{
		Done: func(id uint32, seq int32) {
			if id == CoreID && seq == token {
				state.done = true
				session.Loop().Quit()
			}
		},
	})
	session.AddRegistryListener(RegistryEvents{
		Global: func(g Global) {
			if g.ID == nodeID {
				state.props = g.Props
			}
		},
	})

	if err := session.RunUntil(ctx, func() bool { return state.done }); err != nil {
		return nil, err
	}
	return state.props, nil
}
