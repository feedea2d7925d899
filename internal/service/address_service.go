package service

import (
	"context"
	"errors"
	"strings"

	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/localstore"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/notify"
	"github.com/dujiao-next/storefront/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddressInput 地址写入参数
type AddressInput struct {
	Name      string `json:"name" binding:"required"`
	Mobile    string `json:"mobile" binding:"required"`
	Province  string `json:"province"`
	City      string `json:"city"`
	District  string `json:"district"`
	Address   string `json:"address" binding:"required"`
	IsDefault bool   `json:"isDefault"`
}

func (in AddressInput) normalize() (AddressInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Province = strings.TrimSpace(in.Province)
	in.City = strings.TrimSpace(in.City)
	in.District = strings.TrimSpace(in.District)
	in.Address = strings.TrimSpace(in.Address)
	if in.Name == "" || in.Mobile == "" || in.Address == "" {
		return in, ErrAddressInvalid
	}
	return in, nil
}

func (in AddressInput) apply(a models.Address) models.Address {
	a.Name = in.Name
	a.Mobile = in.Mobile
	a.Province = in.Province
	a.City = in.City
	a.District = in.District
	a.Address = in.Address
	a.IsDefault = in.IsDefault
	return a
}

// SameAddress 同一地址：id 相同，或全部内容字段相同
func SameAddress(a, b models.Address) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	return a.ContentKey() == b.ContentKey()
}

// Dedupe 去重：先保留远端来源记录，再保留与已保留记录内容不重复的本地记录；
// 默认标记只保留第一个，远端来源优先。
func Dedupe(list []models.Address) []models.Address {
	out := make([]models.Address, 0, len(list))
	seen := make(map[string]bool, len(list))
	hasDefault := false
	keep := func(local bool) {
		for _, addr := range list {
			if addr.IsLocalAdded != local {
				continue
			}
			key := addr.ContentKey()
			if seen[key] {
				continue
			}
			if addr.IsDefault {
				if hasDefault {
					addr.IsDefault = false
				} else {
					hasDefault = true
				}
			}
			seen[key] = true
			out = append(out, addr)
		}
	}
	keep(false)
	keep(true)
	return out
}

// EnsureSingleDefault 多个默认时保留远端来源的第一个，否则保留第一个
func EnsureSingleDefault(list []models.Address) []models.Address {
	out := models.CloneAddresses(list)
	keepIdx := -1
	for i, addr := range out {
		if !addr.IsDefault {
			continue
		}
		if keepIdx < 0 {
			keepIdx = i
		}
		if !addr.IsLocalAdded {
			keepIdx = i
			break
		}
	}
	for i := range out {
		out[i].IsDefault = i == keepIdx
	}
	return out
}

// MergeAddresses 合并远端列表与本地列表
// 成员：远端列表 ∪ 与远端内容不重复的本地新增记录。
// 默认：远端声明的默认 > 本地原有默认 > 无。
func MergeAddresses(server, local []models.Address) []models.Address {
	server = Dedupe(server)
	var serverDefault *models.Address
	for i := range server {
		server[i].IsLocalAdded = false
		if server[i].IsDefault {
			serverDefault = &server[i]
		}
	}

	var localDefault *models.Address
	merged := append([]models.Address(nil), server...)
	for _, addr := range local {
		if addr.IsDefault && localDefault == nil {
			a := addr
			localDefault = &a
		}
		if !addr.IsLocalAdded {
			continue
		}
		matched := false
		for _, s := range server {
			if SameAddress(addr, s) {
				matched = true
				break
			}
		}
		if !matched {
			merged = append(merged, addr)
		}
	}
	merged = Dedupe(merged)

	switch {
	case serverDefault != nil:
		for i := range merged {
			merged[i].IsDefault = merged[i].ID == serverDefault.ID
		}
	case localDefault != nil:
		found := -1
		for i := range merged {
			if found < 0 && SameAddress(merged[i], *localDefault) {
				found = i
			}
		}
		for i := range merged {
			merged[i].IsDefault = i == found
		}
	default:
		merged = EnsureSingleDefault(merged)
	}
	return merged
}

// AddressState 地址集合
type AddressState struct {
	Items []models.Address `json:"items"`
}

func cloneAddressState(s AddressState) AddressState {
	return AddressState{Items: models.CloneAddresses(s.Items)}
}

func (s *AddressState) indexOf(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *AddressState) hasContent(key, exceptID string) bool {
	for _, addr := range s.Items {
		if addr.ID != exceptID && addr.ContentKey() == key {
			return true
		}
	}
	return false
}

func (s *AddressState) clearDefault(exceptID string) {
	for i := range s.Items {
		if s.Items[i].ID != exceptID {
			s.Items[i].IsDefault = false
		}
	}
}

// AddressService 收货地址协调
// 本地存储是离线时的数据来源，远端失败时保留本地修改。
type AddressService struct {
	gw       gateway.AddressGateway
	session  *gateway.Session
	store    localstore.Store
	notifier notify.Notifier
	log      *zap.SugaredLogger
	state    *state.Store[AddressState]
}

// NewAddressService 创建地址服务
func NewAddressService(gw gateway.AddressGateway, session *gateway.Session, store localstore.Store, notifier notify.Notifier, log *zap.SugaredLogger) *AddressService {
	if log == nil {
		log = logger.Named("address")
	}
	return &AddressService{
		gw:       gw,
		session:  session,
		store:    store,
		notifier: notifier,
		log:      log,
		state:    state.New(AddressState{}, cloneAddressState),
	}
}

// State 状态容器
func (s *AddressService) State() *state.Store[AddressState] {
	return s.state
}

// List 地址列表
func (s *AddressService) List() []models.Address {
	return s.state.GetState().Items
}

// Default 默认地址
func (s *AddressService) Default() (models.Address, bool) {
	for _, addr := range s.List() {
		if addr.IsDefault {
			return addr, true
		}
	}
	return models.Address{}, false
}

// Find 按 id 查找
func (s *AddressService) Find(id string) (models.Address, bool) {
	for _, addr := range s.List() {
		if addr.ID == id {
			return addr, true
		}
	}
	return models.Address{}, false
}

// Load 合并本地存储与远端列表；未登录或远端失败时使用本地数据
func (s *AddressService) Load(ctx context.Context) ([]models.Address, error) {
	stored := s.loadStored(ctx)
	s.state.Dispatch("address/load_local", func(st *AddressState) {
		if len(st.Items) == 0 {
			st.Items = stored
		}
	})

	if s.session != nil && s.session.RequireLogin() != nil {
		return s.List(), nil
	}

	server, err := s.gw.ListAddresses(ctx)
	if err != nil {
		s.log.Warnw("address_load_remote_failed", "error", err)
		return s.List(), nil
	}

	s.state.Dispatch("address/loaded", func(st *AddressState) {
		st.Items = MergeAddresses(server, st.Items)
	})
	s.persist(ctx)
	list := s.List()
	s.log.Debugw("address_loaded", "server", len(server), "merged", len(list))
	return list, nil
}

func (s *AddressService) loadStored(ctx context.Context) []models.Address {
	if s.store == nil {
		return nil
	}
	var stored []models.Address
	ok, err := s.store.Get(ctx, constants.StorageKeyUserAddresses, &stored)
	if err != nil {
		s.log.Warnw("address_storage_read_failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	for i := range stored {
		if stored[i].HasLocalID() {
			stored[i].IsLocalAdded = true
		}
	}
	deduped := Dedupe(stored)
	if len(deduped) != len(stored) {
		s.log.Infow("address_storage_deduped", "before", len(stored), "after", len(deduped))
		if err := s.store.Set(ctx, constants.StorageKeyUserAddresses, deduped); err != nil {
			s.log.Warnw("address_persist_failed", "error", err)
		}
	}
	return deduped
}

// Add 新增地址；远端失败时保留为本地新增记录
func (s *AddressService) Add(ctx context.Context, input AddressInput) (*models.Address, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	in, err := input.normalize()
	if err != nil {
		return nil, err
	}

	draft := in.apply(models.Address{
		ID:           constants.LocalAddressIDPrefix + uuid.NewString(),
		IsLocalAdded: true,
	})
	err = s.state.DispatchE("address/add", func(st *AddressState) error {
		if st.hasContent(draft.ContentKey(), "") {
			return ErrAddressDuplicate
		}
		if draft.IsDefault {
			st.clearDefault("")
		}
		st.Items = append([]models.Address{draft}, st.Items...)
		return nil
	})
	if err != nil {
		s.notifier.Warning("该地址已存在，不可重复添加")
		return nil, err
	}

	result := draft
	saved, err := s.gw.AddAddress(ctx, gateway.PayloadFromAddress(draft))
	if err != nil || saved == nil || saved.ID == "" {
		s.log.Warnw("address_add_remote_failed", "local_id", draft.ID, "error", err)
	} else {
		confirmed := *saved
		confirmed.IsLocalAdded = false
		confirmed.IsDefault = draft.IsDefault
		s.state.Dispatch("address/add_confirmed", func(st *AddressState) {
			idx := st.indexOf(draft.ID)
			if idx < 0 {
				return
			}
			if st.indexOf(confirmed.ID) >= 0 {
				st.Items = append(st.Items[:idx], st.Items[idx+1:]...)
				return
			}
			st.Items[idx] = confirmed
		})
		result = confirmed
	}

	s.persist(ctx)
	s.notifier.Success("地址添加成功")
	return &result, nil
}

// Update 更新地址；本地新增记录只在本地更新，远端失败时转为本地记录
func (s *AddressService) Update(ctx context.Context, id string, input AddressInput) (*models.Address, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrAddressNotFound
	}
	in, err := input.normalize()
	if err != nil {
		return nil, err
	}

	var updated models.Address
	localOnly := false
	err = s.state.DispatchE("address/update", func(st *AddressState) error {
		idx := st.indexOf(id)
		if idx < 0 {
			return ErrAddressNotFound
		}
		next := in.apply(st.Items[idx])
		if st.hasContent(next.ContentKey(), id) {
			return ErrAddressDuplicate
		}
		if next.IsDefault {
			st.clearDefault(id)
		}
		localOnly = next.IsLocalAdded || next.HasLocalID()
		st.Items[idx] = next
		updated = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAddressDuplicate) {
			s.notifier.Warning("更新后的地址与已有地址重复，请修改后再保存")
		}
		return nil, err
	}

	if !localOnly {
		if _, err := s.gw.UpdateAddress(ctx, id, gateway.PayloadFromAddress(updated)); err != nil {
			s.log.Warnw("address_update_remote_failed", "address_id", id, "error", err)
			s.state.Dispatch("address/update_local_fallback", func(st *AddressState) {
				if idx := st.indexOf(id); idx >= 0 {
					st.Items[idx].IsLocalAdded = true
				}
			})
			updated.IsLocalAdded = true
		}
	}

	s.persist(ctx)
	return &updated, nil
}

// Remove 删除地址，远端失败不阻塞本地删除
func (s *AddressService) Remove(ctx context.Context, id string) error {
	if err := s.requireLogin(); err != nil {
		return err
	}
	var removed models.Address
	err := s.state.DispatchE("address/remove", func(st *AddressState) error {
		idx := st.indexOf(id)
		if idx < 0 {
			return ErrAddressNotFound
		}
		removed = st.Items[idx]
		st.Items = append(st.Items[:idx], st.Items[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	if !removed.HasLocalID() {
		if err := s.gw.DeleteAddress(ctx, id); err != nil {
			s.log.Warnw("address_delete_remote_failed", "address_id", id, "error", err)
		}
	}
	s.persist(ctx)
	return nil
}

// SetDefault 设为默认；已是默认时直接成功，远端失败保留本地结果
func (s *AddressService) SetDefault(ctx context.Context, id string) error {
	if err := s.requireLogin(); err != nil {
		return err
	}
	already := false
	localOnly := false
	err := s.state.DispatchE("address/set_default", func(st *AddressState) error {
		idx := st.indexOf(id)
		if idx < 0 {
			return ErrAddressNotFound
		}
		if st.Items[idx].IsDefault {
			already = true
			return nil
		}
		localOnly = st.Items[idx].HasLocalID()
		for i := range st.Items {
			st.Items[i].IsDefault = i == idx
		}
		return nil
	})
	if err != nil || already {
		return err
	}

	s.persist(ctx)
	if localOnly {
		return nil
	}
	if err := s.gw.SetDefaultAddress(ctx, id); err != nil {
		s.log.Warnw("address_set_default_remote_failed", "address_id", id, "error", err)
	}
	return nil
}

func (s *AddressService) requireLogin() error {
	if s.session == nil {
		return nil
	}
	if err := s.session.RequireLogin(); err != nil {
		s.notifier.Warning("请先登录")
		return err
	}
	return nil
}

// persist 全量写入本地存储
func (s *AddressService) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, constants.StorageKeyUserAddresses, s.List()); err != nil {
		s.log.Warnw("address_persist_failed", "error", err)
	}
}
