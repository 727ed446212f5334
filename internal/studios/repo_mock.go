package studios

import (
	"context"
	"sort"
	"strings"
	"sync"
)

var _ studiosRepo = (*repoMock)(nil)

type repoMock struct {
	// studio ID to Studio
	Studios map[int]Studio
	nextID  int
	mutex   sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		Studios: map[int]Studio{},
		nextID:  1,
	}
}

func (r *repoMock) Add(_ context.Context, studio Studio) (*Studio, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, s := range r.Studios {
		if s.Name == studio.Name && s.City == studio.City {
			return nil, ErrStudioExists
		}
	}

	studio.ID = r.nextID
	r.nextID++
	r.Studios[studio.ID] = studio
	return &studio, nil
}

func (r *repoMock) Get(_ context.Context, id int) (*Studio, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	studio, ok := r.Studios[id]
	if !ok {
		return nil, ErrStudioNotFound
	}
	return &studio, nil
}

func (r *repoMock) ListAll(_ context.Context) ([]Studio, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	studios := make([]Studio, 0, len(r.Studios))
	for _, s := range r.Studios {
		studios = append(studios, s)
	}
	sort.Slice(studios, func(i, j int) bool {
		return studios[i].Name < studios[j].Name
	})
	return studios, nil
}

func (r *repoMock) Search(_ context.Context, query string) ([]Studio, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	query = strings.ToLower(query)
	studios := make([]Studio, 0)
	for _, s := range r.Studios {
		if strings.Contains(strings.ToLower(s.Name), query) ||
			strings.Contains(strings.ToLower(s.City), query) {
			studios = append(studios, s)
		}
	}
	sort.Slice(studios, func(i, j int) bool {
		return studios[i].Name < studios[j].Name
	})
	return studios, nil
}

func (r *repoMock) Delete(_ context.Context, id int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Studios[id]; !ok {
		return ErrStudioNotFound
	}
	delete(r.Studios, id)
	return nil
}
