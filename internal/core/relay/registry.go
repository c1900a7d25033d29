package relay

// Registry tracks which connection produces frames for each agent and
// which connections are watching each agent. It is owned by the hub
// goroutine and must not be touched from anywhere else; that single
// ownership is what keeps membership changes ordered against frame
// routing without locks.
type Registry struct {
	agents  map[string]Conn            // agentID -> current producer
	viewers map[string]map[string]Conn // agentID -> connID -> viewer
	conns   map[string]Conn            // every live connection, for status broadcast
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents:  make(map[string]Conn),
		viewers: make(map[string]map[string]Conn),
		conns:   make(map[string]Conn),
	}
}

// Track records a connection as live. Called once when the transport
// accepts it, before any other event for that connection.
func (r *Registry) Track(conn Conn) {
	r.conns[conn.ID()] = conn
}

// BindAgent makes conn the producer for agentID. A prior binding for the
// same agent is silently replaced; the agent process reconnecting is the
// normal case, not an error.
func (r *Registry) BindAgent(agentID string, conn Conn) {
	r.agents[agentID] = conn
}

// AgentConn returns the current producer binding for agentID, if any.
func (r *Registry) AgentConn(agentID string) (Conn, bool) {
	c, ok := r.agents[agentID]
	return c, ok
}

// Subscribe adds conn to the viewer set for agentID. Subscribing twice
// is a no-op.
func (r *Registry) Subscribe(agentID string, conn Conn) {
	set, ok := r.viewers[agentID]
	if !ok {
		set = make(map[string]Conn)
		r.viewers[agentID] = set
	}
	set[conn.ID()] = conn
}

// Unsubscribe removes conn from the viewer set for agentID. Absent
// membership is a no-op.
func (r *Registry) Unsubscribe(agentID string, conn Conn) {
	set, ok := r.viewers[agentID]
	if !ok {
		return
	}
	delete(set, conn.ID())
	if len(set) == 0 {
		delete(r.viewers, agentID)
	}
}

// Viewers returns the current viewer set for agentID. The returned map
// is live registry state; callers iterate it inside the hub goroutine
// and must not retain it.
func (r *Registry) Viewers(agentID string) map[string]Conn {
	return r.viewers[agentID]
}

// Conns returns every live connection keyed by connection ID.
func (r *Registry) Conns() map[string]Conn {
	return r.conns
}

// Drop removes conn from every viewer set it belongs to and clears any
// agent binding it held. Frames for that agent simply have no producer
// until a new BindAgent arrives.
func (r *Registry) Drop(conn Conn) {
	id := conn.ID()
	delete(r.conns, id)
	for agentID, set := range r.viewers {
		delete(set, id)
		if len(set) == 0 {
			delete(r.viewers, agentID)
		}
	}
	for agentID, c := range r.agents {
		if c.ID() == id {
			delete(r.agents, agentID)
		}
	}
}
