package scrollmem

import "encoding/json"

// The persisted form is the sessionStorage contract: a JSON list of
// [restorationId, {x, y}] pairs, written wholesale under one key.

type persistedPair struct {
	ID  string
	Off Offset
}

func (p persistedPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Off})
}

func (p *persistedPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Off)
}

// hydrate merges previously persisted positions into the table. Missing or
// corrupt data is treated as no prior data.
func (s *Store) hydrate() {
	raw, ok := s.kv.Get(storageKey)
	if !ok || raw == "" {
		return
	}
	var pairs []persistedPair
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		s.logger.Debug("scrollmem: corrupt persisted positions, ignoring", "error", err)
		return
	}
	for _, p := range pairs {
		if p.ID == "" {
			continue
		}
		s.table[p.ID] = p.Off
	}
}

// Persist saves the departing offset one final time and writes the whole
// table back to the session store. Fire-and-forget: called on the page's
// unload signal, all failures swallowed.
func (s *Store) Persist() {
	s.Save()

	s.mu.Lock()
	pairs := make([]persistedPair, 0, len(s.table))
	for id, off := range s.table {
		pairs = append(pairs, persistedPair{ID: id, Off: off})
	}
	s.mu.Unlock()

	data, err := json.Marshal(pairs)
	if err != nil {
		s.logger.Debug("scrollmem: marshal positions failed", "error", err)
		return
	}
	if err := s.kv.Set(storageKey, string(data)); err != nil {
		s.logger.Debug("scrollmem: persist positions failed", "error", err)
	}
}
