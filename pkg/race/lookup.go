package race

import "sync"

// Lookup is the arena of live race managers. Race ids are the sole
// sharding unit; there is no cross-race locking.
type Lookup struct {
	mu     sync.RWMutex
	lookup map[string]*Manager
}

func NewLookup() *Lookup {
	return &Lookup{
		lookup: make(map[string]*Manager),
	}
}

func (l *Lookup) AddRace(m *Manager) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.lookup[m.RaceID()]; ok {
		return
	}
	l.lookup[m.RaceID()] = m
}

func (l *Lookup) GetRace(raceID string) (*Manager, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if ret, ok := l.lookup[raceID]; ok {
		return ret, nil
	}
	return nil, ErrRaceNotFound
}

func (l *Lookup) RemoveRace(raceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lookup, raceID)
}

func (l *Lookup) Races() []*Manager {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := make([]*Manager, 0, len(l.lookup))
	for _, v := range l.lookup {
		ret = append(ret, v)
	}
	return ret
}

func (l *Lookup) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookup = make(map[string]*Manager)
}
