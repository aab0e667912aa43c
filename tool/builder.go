package tool

// Config holds the configuration for building a Spec.
type Config struct {
	name            string
	description     string
	params          []Param
	runsInSandbox   bool
	parallelizable  bool
	needsAgentState bool
	terminal        bool
	fn              Func
	stateFn         StateFunc
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{}
}

// SetName sets the tool name.
func (c *Config) SetName(name string) *Config {
	c.name = name
	return c
}

// SetDescription sets the tool description.
func (c *Config) SetDescription(desc string) *Config {
	c.description = desc
	return c
}

// AddParam appends a parameter declaration.
func (c *Config) AddParam(name, description string, required bool) *Config {
	c.params = append(c.params, Param{Name: name, Description: description, Required: required})
	return c
}

// SetRunsInSandbox routes the tool through the sandbox tool-server.
func (c *Config) SetRunsInSandbox(v bool) *Config {
	c.runsInSandbox = v
	return c
}

// SetParallelizable allows the tool in the parallel wave.
func (c *Config) SetParallelizable(v bool) *Config {
	c.parallelizable = v
	return c
}

// SetTerminal marks the tool as a finish tool.
func (c *Config) SetTerminal(v bool) *Config {
	c.terminal = v
	return c
}

// SetFunc sets a stateless implementation.
func (c *Config) SetFunc(fn Func) *Config {
	c.fn = fn
	return c
}

// SetStateFunc sets a state-receiving implementation and implies
// needs_agent_state.
func (c *Config) SetStateFunc(fn StateFunc) *Config {
	c.stateFn = fn
	c.needsAgentState = true
	return c
}

// Build creates a Spec from the Config.
// Returns an error if the resulting spec fails validation.
func (c *Config) Build() (*Spec, error) {
	s := &Spec{
		Name:            c.name,
		Description:     c.description,
		Params:          c.params,
		RunsInSandbox:   c.runsInSandbox,
		Parallelizable:  c.parallelizable,
		NeedsAgentState: c.needsAgentState,
		Terminal:        c.terminal,
		fn:              c.fn,
		stateFn:         c.stateFn,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
