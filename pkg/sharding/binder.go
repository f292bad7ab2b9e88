package sharding

// resolveDB returns the database name a rewritten table reference must
// be qualified with under the database strategy: the endpoint node
// names in a rule's data-node list are logical identifiers, and the
// physical schema the downstream connection actually speaks is the
// endpoint's own configured database.
func (t *Topology) resolveDB(node string) (string, error) {
	ep, ok := t.Endpoints[node]
	if !ok {
		return "", Wrap(KindEndpointNotFound, node, nil)
	}
	return ep.DB, nil
}

// Bind resolves a rule's data-node name into the DataSource a caller
// should route a rewritten statement to. In read-write split mode a
// node name addresses a NodeGroup and the caller picks primary or
// replica at dispatch time; otherwise it addresses a single Endpoint
// directly.
func (t *Topology) Bind(node string) (DataSource, error) {
	if t.ReadWriteSplit {
		if _, ok := t.NodeGroups[node]; ok {
			return DataSource{Kind: DataSourceNodeGroup, NodeGroupName: node}, nil
		}
		return DataSource{}, Wrap(KindEndpointNotFound, node, nil)
	}
	if ep, ok := t.Endpoints[node]; ok {
		return DataSource{Kind: DataSourceEndpoint, Endpoint: *ep}, nil
	}
	return DataSource{}, Wrap(KindEndpointNotFound, node, nil)
}
