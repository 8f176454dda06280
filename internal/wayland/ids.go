package wayland

// ObjectID is a protocol object handle scoped to one connection.
type ObjectID uint32

const (
	DisplayID ObjectID = 1

	firstClientID ObjectID = 2
	maxClientID   ObjectID = 0xFEFFFFFF
)

// idAllocator mints client-side ids. Ids released by delete_id are reused
// most-recent first before new ids are minted.
type idAllocator struct {
	next ObjectID
	free []ObjectID
}

func newIDAllocator() idAllocator {
	return idAllocator{next: firstClientID}
}

func (a *idAllocator) alloc() (ObjectID, error) {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id, nil
	}
	if a.next > maxClientID {
		return 0, ErrIDsExhausted
	}
	id := a.next
	a.next++
	return id, nil
}

func (a *idAllocator) release(id ObjectID) bool {
	if id < firstClientID || id >= a.next {
		return false
	}
	for _, f := range a.free {
		if f == id {
			return false
		}
	}
	a.free = append(a.free, id)
	return true
}
