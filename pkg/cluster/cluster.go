// Package cluster tracks the nodes of the query cluster.
package cluster

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// Node is a member of the cluster.
type Node struct {
	Name     string
	Address  string
	Priority uint8
	Local    bool
}

// Cluster is a registry of nodes keyed by name. It is safe for concurrent
// use.
type Cluster struct {
	nodes *xsync.Map[string, Node]
}

// New returns a cluster holding the given nodes.
func New(nodes ...Node) (*Cluster, error) {
	c := &Cluster{nodes: xsync.NewMap[string, Node]()}
	for _, n := range nodes {
		if err := c.AddNode(n); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddNode registers a node, failing if the name is taken.
func (c *Cluster) AddNode(n Node) error {
	if n.Name == "" || n.Address == "" {
		return fuseerrors.NewValidationError(errors.New("cluster node requires a name and an address"))
	}

	_, loaded := c.nodes.LoadOrStore(n.Name, n)
	if loaded {
		return fuseerrors.NewAlreadyExistsError(fmt.Errorf("cluster node `%s` already exists", n.Name)).
			WithDetail("node", n.Name)
	}
	return nil
}

// RemoveNode unregisters a node.
func (c *Cluster) RemoveNode(name string) error {
	if _, ok := c.nodes.LoadAndDelete(name); !ok {
		return fuseerrors.NewNotFoundError(fmt.Errorf("cluster node `%s` not found", name)).
			WithDetail("node", name)
	}
	return nil
}

// GetNode returns the named node.
func (c *Cluster) GetNode(name string) (Node, bool) {
	return c.nodes.Load(name)
}

// GetNodes returns every node ordered by name.
func (c *Cluster) GetNodes() []Node {
	nodes := make([]Node, 0, c.nodes.Size())
	c.nodes.Range(func(_ string, n Node) bool {
		nodes = append(nodes, n)
		return true
	})
	slices.SortFunc(nodes, func(a, b Node) int { return cmp.Compare(a.Name, b.Name) })
	return nodes
}

// IsEmpty returns true if the cluster has no nodes: the query runs on the
// local node only.
func (c *Cluster) IsEmpty() bool {
	return c.nodes.Size() == 0
}
