package render

import "levelview/internal/topology"

func topologyForTest() *topology.Topology {
	return topology.Default()
}
