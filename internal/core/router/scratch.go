package router

// Scratch is the per-dispatch side-band: a mutable structure middlewares and
// handlers use to pass control flags to each other within one dispatch. It is
// distinct from the envelope payload, so downstream consumers of a forwarded
// envelope never observe in-process flags.
type Scratch struct {
	m map[string]any
}

func NewScratch() *Scratch {
	return &Scratch{m: map[string]any{}}
}

func (s *Scratch) Set(key string, v any) {
	s.m[key] = v
}

func (s *Scratch) Get(key string) (any, bool) {
	v, ok := s.m[key]
	return v, ok
}

func (s *Scratch) Bool(key string) bool {
	b, _ := s.m[key].(bool)
	return b
}

func (s *Scratch) String(key string) string {
	v, _ := s.m[key].(string)
	return v
}

func (s *Scratch) Int64(key string) int64 {
	v, _ := s.m[key].(int64)
	return v
}
