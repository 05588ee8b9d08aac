package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

// Memory is a process-local Repository used by tests and by local runs
// with DATABASE_URL=memory. WithinTx serializes units of work but cannot
// roll them back.
type Memory struct {
	txMu sync.Mutex
	data *memData
}

type memData struct {
	mu        sync.RWMutex
	users     map[int64]domain.User
	settings  map[string]string
	states    map[int64]domain.ConversationState
	withdraws map[int64]domain.WithdrawRequest
	ucs       map[int64]domain.UcRequest
	drops     map[[2]int]domain.DropRecord
	movies    map[string]domain.MovieCode
	nextID    int64
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: &memData{
		users:     make(map[int64]domain.User),
		settings:  make(map[string]string),
		states:    make(map[int64]domain.ConversationState),
		withdraws: make(map[int64]domain.WithdrawRequest),
		ucs:       make(map[int64]domain.UcRequest),
		drops:     make(map[[2]int]domain.DropRecord),
		movies:    make(map[string]domain.MovieCode),
	}}
}

// memTx shares the data of its parent but is already inside the unit of
// work, so nested WithinTx calls do not deadlock.
type memTx struct {
	*Memory
}

func (m *Memory) WithinTx(ctx context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(memTx{&Memory{data: m.data}})
}

func (t memTx) WithinTx(ctx context.Context, fn func(Repository) error) error {
	return fn(t)
}

func cloneUser(u domain.User) *domain.User {
	c := u
	if u.PremiumUntil != nil {
		p := *u.PremiumUntil
		c.PremiumUntil = &p
	}
	if u.LastMineAt != nil {
		l := *u.LastMineAt
		c.LastMineAt = &l
	}
	if u.ReferredBy != nil {
		r := *u.ReferredBy
		c.ReferredBy = &r
	}
	return &c
}

func (m *Memory) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	u, ok := m.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	return m.GetUser(ctx, id)
}

func (m *Memory) GetUserByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	for _, u := range m.data.users {
		if u.ReferralCode == code {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreateUser(ctx context.Context, u *domain.User) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if _, ok := m.data.users[u.ID]; ok {
		return ErrDuplicate
	}
	for _, other := range m.data.users {
		if other.ReferralCode == u.ReferralCode {
			return ErrReferralCodeTaken
		}
	}
	m.data.users[u.ID] = *cloneUser(*u)
	return nil
}

func (m *Memory) UpdateUserIdentity(ctx context.Context, p domain.Profile) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	u, ok := m.data.users[p.ID]
	if !ok {
		return ErrNotFound
	}
	u.Username, u.FirstName, u.LastName = p.Username, p.FirstName, p.LastName
	m.data.users[p.ID] = u
	return nil
}

func (m *Memory) AdjustBalance(ctx context.Context, id, delta int64) (int64, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	u, ok := m.data.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	if u.FxBalance+delta < 0 {
		return 0, ErrInsufficientFunds
	}
	u.FxBalance += delta
	m.data.users[id] = u
	return u.FxBalance, nil
}

func (m *Memory) SetPremiumUntil(ctx context.Context, id int64, until time.Time) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	u, ok := m.data.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PremiumUntil = &until
	m.data.users[id] = u
	return nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (m *Memory) ApplyMine(ctx context.Context, id, amount int64, minedAt time.Time, prev *time.Time) (int64, bool, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	u, ok := m.data.users[id]
	if !ok || !sameInstant(u.LastMineAt, prev) || u.FxBalance+amount < 0 {
		return 0, false, nil
	}
	u.FxBalance += amount
	u.TotalMined += amount
	u.LastMineAt = &minedAt
	m.data.users[id] = u
	return u.FxBalance, true, nil
}

func (m *Memory) SetReferredBy(ctx context.Context, userID, referrerID int64) (bool, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	u, ok := m.data.users[userID]
	if !ok || u.ReferredBy != nil || userID == referrerID {
		return false, nil
	}
	if _, ok := m.data.users[referrerID]; !ok {
		return false, nil
	}
	u.ReferredBy = &referrerID
	m.data.users[userID] = u
	return true, nil
}

func (m *Memory) CreditReferral(ctx context.Context, referrerID, bonus int64) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	u, ok := m.data.users[referrerID]
	if !ok {
		return ErrNotFound
	}
	u.FxBalance += bonus
	u.ReferralFx += bonus
	u.ReferralsCount++
	m.data.users[referrerID] = u
	return nil
}

func (m *Memory) sortedUsers() []domain.User {
	users := make([]domain.User, 0, len(m.data.users))
	for _, u := range m.data.users {
		users = append(users, *cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].FxBalance != users[j].FxBalance {
			return users[i].FxBalance > users[j].FxBalance
		}
		return users[i].ID < users[j].ID
	})
	return users
}

func (m *Memory) TopUsers(ctx context.Context, limit int) ([]domain.User, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	users := m.sortedUsers()
	if limit >= 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *Memory) RankByBalance(ctx context.Context, balance int64) (int64, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	rank := int64(1)
	for _, u := range m.data.users {
		if u.FxBalance > balance {
			rank++
		}
	}
	return rank, nil
}

func (m *Memory) AllUserIDs(ctx context.Context) ([]int64, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	ids := make([]int64, 0, len(m.data.users))
	for id := range m.data.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) Stats(ctx context.Context) (domain.Stats, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	var st domain.Stats
	for _, u := range m.data.users {
		st.UserCount++
		st.TotalFx += u.FxBalance
	}
	return st, nil
}

func (m *Memory) GetSetting(ctx context.Context, key string) (string, bool, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	v, ok := m.data.settings[key]
	return v, ok, nil
}

func (m *Memory) SetSetting(ctx context.Context, key, value string) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	m.data.settings[key] = value
	return nil
}

func (m *Memory) ListSettings(ctx context.Context) (map[string]string, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	out := make(map[string]string, len(m.data.settings))
	for k, v := range m.data.settings {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SeedSettings(ctx context.Context, defaults map[string]string) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	for k, v := range defaults {
		if _, ok := m.data.settings[k]; !ok {
			m.data.settings[k] = v
		}
	}
	return nil
}

func (m *Memory) GetState(ctx context.Context, userID int64) (*domain.ConversationState, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	st, ok := m.data.states[userID]
	if !ok {
		return nil, ErrNotFound
	}
	st.Data = append([]byte(nil), st.Data...)
	return &st, nil
}

func (m *Memory) SetState(ctx context.Context, st domain.ConversationState) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	st.Data = append([]byte(nil), st.Data...)
	m.data.states[st.UserID] = st
	return nil
}

func (m *Memory) ClearState(ctx context.Context, userID int64) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	delete(m.data.states, userID)
	return nil
}

func (m *Memory) PurgeStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	var n int64
	for id, st := range m.data.states {
		if st.UpdatedAt.Before(cutoff) {
			delete(m.data.states, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateWithdrawRequest(ctx context.Context, r *domain.WithdrawRequest) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if _, ok := m.data.users[r.UserID]; !ok {
		return ErrNotFound
	}
	m.data.nextID++
	r.ID = m.data.nextID
	if r.Status == "" {
		r.Status = domain.StatusPending
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	m.data.withdraws[r.ID] = *r
	return nil
}

func (m *Memory) GetWithdrawRequest(ctx context.Context, id int64) (*domain.WithdrawRequest, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	r, ok := m.data.withdraws[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) PendingWithdrawRequests(ctx context.Context) ([]domain.WithdrawRequest, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	var out []domain.WithdrawRequest
	for _, r := range m.data.withdraws {
		if r.Status == domain.StatusPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ResolveWithdrawRequest(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) (*domain.WithdrawRequest, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	r, ok := m.data.withdraws[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != domain.StatusPending {
		return nil, ErrNotPending
	}
	r.Status = status
	r.UpdatedAt = at
	m.data.withdraws[id] = r
	return &r, nil
}

func (m *Memory) CreateUcRequest(ctx context.Context, r *domain.UcRequest) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if _, ok := m.data.users[r.UserID]; !ok {
		return ErrNotFound
	}
	m.data.nextID++
	r.ID = m.data.nextID
	if r.Status == "" {
		r.Status = domain.StatusPending
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	m.data.ucs[r.ID] = *r
	return nil
}

func (m *Memory) GetUcRequest(ctx context.Context, id int64) (*domain.UcRequest, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	r, ok := m.data.ucs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) PendingUcRequests(ctx context.Context) ([]domain.UcRequest, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	var out []domain.UcRequest
	for _, r := range m.data.ucs {
		if r.Status == domain.StatusPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ResolveUcRequest(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) (*domain.UcRequest, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	r, ok := m.data.ucs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != domain.StatusPending {
		return nil, ErrNotPending
	}
	r.Status = status
	r.UpdatedAt = at
	m.data.ucs[id] = r
	return &r, nil
}

func (m *Memory) GetDropRecord(ctx context.Context, month, year int) (*domain.DropRecord, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	r, ok := m.data.drops[[2]int{month, year}]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) SaveDropRecord(ctx context.Context, r *domain.DropRecord) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	key := [2]int{r.Month, r.Year}
	if existing, ok := m.data.drops[key]; ok {
		r.ID = existing.ID
	} else {
		m.data.nextID++
		r.ID = m.data.nextID
	}
	m.data.drops[key] = *r
	return nil
}

func (m *Memory) GetMovieCode(ctx context.Context, code string) (*domain.MovieCode, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	mc, ok := m.data.movies[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &mc, nil
}

func (m *Memory) UpsertMovieCode(ctx context.Context, mc *domain.MovieCode) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if existing, ok := m.data.movies[mc.Code]; ok {
		mc.CreatedAt = existing.CreatedAt
	}
	m.data.movies[mc.Code] = *mc
	return nil
}

func (m *Memory) DeleteMovieCode(ctx context.Context, code string) (bool, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	_, ok := m.data.movies[code]
	delete(m.data.movies, code)
	return ok, nil
}

func (m *Memory) NextMovieCode(ctx context.Context) (string, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()
	var max int64
	for code := range m.data.movies {
		if !isDigits(code) || len(code) > 18 {
			continue
		}
		n, err := strconv.ParseInt(code, 10, 64)
		if err == nil && n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
