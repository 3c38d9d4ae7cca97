package relay

import "context"

// LocalClient serves allocations straight from an in-process Registry.
type LocalClient struct {
	reg *Registry
}

var _ Client = (*LocalClient)(nil)

func NewLocalClient(reg *Registry) *LocalClient {
	return &LocalClient{reg: reg}
}

func (c *LocalClient) CreateAllocation(ctx context.Context, maxConnections int) (Allocation, error) {
	if err := ctx.Err(); err != nil {
		return Allocation{}, err
	}
	return c.reg.Allocate(maxConnections)
}

func (c *LocalClient) GetJoinCode(ctx context.Context, allocationID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.reg.JoinCode(allocationID)
}

func (c *LocalClient) JoinAllocation(ctx context.Context, joinCode string) (JoinAllocation, error) {
	if err := ctx.Err(); err != nil {
		return JoinAllocation{}, err
	}
	return c.reg.Join(joinCode)
}
