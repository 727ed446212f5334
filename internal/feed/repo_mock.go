package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var _ feedRepo = (*repoMock)(nil)

type repoMock struct {
	// post ID to Post
	Posts  map[int]Post
	nextID int
	mutex  sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		Posts:  map[int]Post{},
		nextID: 1,
	}
}

func (r *repoMock) Add(_ context.Context, post Post) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post.ID = r.nextID
	r.nextID++
	r.Posts[post.ID] = post
	return &post, nil
}

func (r *repoMock) Get(_ context.Context, id int) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post, ok := r.Posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return &post, nil
}

func (r *repoMock) List(_ context.Context, status PostStatus, page, size int) ([]Post, int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if page < 1 || size < 1 {
		return nil, -1, errors.New("invalid page/size")
	}

	matching := make([]Post, 0)
	for _, p := range r.Posts {
		if p.Status == status {
			matching = append(matching, p)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID > matching[j].ID
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	total := len(matching)
	startIndex := (page - 1) * size
	if startIndex >= total {
		return []Post{}, total, nil
	}
	endIndex := startIndex + size
	if endIndex > total {
		endIndex = total
	}
	return matching[startIndex:endIndex], total, nil
}

func (r *repoMock) SetStatus(_ context.Context, id int, status PostStatus, moderatedAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post, ok := r.Posts[id]
	if !ok || post.Status != StatusPending {
		return ErrPostNotFound
	}
	post.Status = status
	post.ModeratedAt = &moderatedAt
	r.Posts[id] = post
	return nil
}

func (r *repoMock) Delete(_ context.Context, id int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.Posts, id)
	return nil
}
