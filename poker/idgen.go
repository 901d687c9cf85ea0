package poker

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
)

type UniqueIdGenerator interface {
	Generate() string
	Dispose(id string)
}

// Idgen hands out URL-safe room ids with 128 bits of entropy and remembers
// the live ones so an id is never issued twice while in use.
type Idgen struct {
	ids    map[string]struct{}
	locker sync.Mutex
}

func NewIdGen() *Idgen {
	return &Idgen{ids: make(map[string]struct{})}
}

func (idgen *Idgen) Generate() string {
	idgen.locker.Lock()
	defer idgen.locker.Unlock()

	for {
		b := make([]byte, 16)
		// crypto/rand.Read never returns an error on supported platforms
		_, _ = rand.Read(b)
		id := base64.RawURLEncoding.EncodeToString(b)
		if _, taken := idgen.ids[id]; taken {
			continue
		}
		idgen.ids[id] = struct{}{}
		return id
	}
}

func (idgen *Idgen) Dispose(id string) {
	idgen.locker.Lock()
	delete(idgen.ids, id)
	idgen.locker.Unlock()
}
