package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Kirifer/ITS-certificate-generator/internal/database"
	"github.com/Kirifer/ITS-certificate-generator/internal/model"
	"github.com/Kirifer/ITS-certificate-generator/internal/notify"
	"github.com/Kirifer/ITS-certificate-generator/internal/repository"
	"github.com/Kirifer/ITS-certificate-generator/internal/storage"
)

// fakeStore 内存制品存储,记录写入与删除
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]*storage.Artifact
	deleted []string
	failPut bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]*storage.Artifact{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, artifact *storage.Artifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return "", errors.New("put failed")
	}
	f.objects[key] = artifact
	return key, nil
}

func (f *fakeStore) Get(ctx context.Context, ref string) (*storage.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	artifact, ok := f.objects[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return artifact, nil
}

func (f *fakeStore) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[ref]; !ok {
		return errors.New("not found")
	}
	delete(f.objects, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeStore) has(ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[ref]
	return ok
}

// recordingNotifier 记录收到的审批请求与审批结果事件
type recordingNotifier struct {
	mu       sync.Mutex
	events   []*notify.ApprovalRequestedEvent
	resolved []*notify.ApprovalResolvedEvent
}

func (r *recordingNotifier) NotifyApprovalRequested(ctx context.Context, event *notify.ApprovalRequestedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) NotifyApprovalResolved(ctx context.Context, event *notify.ApprovalResolvedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, event)
	return nil
}

func (r *recordingNotifier) resolvedOutcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.resolved))
	for _, e := range r.resolved {
		out = append(out, e.Outcome)
	}
	return out
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingNotifier) emails() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.ApproverEmail)
	}
	return out
}

type serviceFixture struct {
	svc      CertificateService
	store    *fakeStore
	notifier *recordingNotifier
	db       *gorm.DB
}

func setupService(t *testing.T, retainOriginal bool) *serviceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	store := newFakeStore()
	notifier := &recordingNotifier{}
	certRepo := repository.NewCertificateRepository(db)
	approvedRepo := repository.NewApprovedCertificateRepository(db)
	auditSvc := NewAuditLogService(repository.NewAuditLogRepository(db))

	svc := NewCertificateService(certRepo, approvedRepo, store, notifier, auditSvc, retainOriginal)
	return &serviceFixture{svc: svc, store: store, notifier: notifier, db: db}
}

func validSubmitRequest() *SubmitRequest {
	return &SubmitRequest{
		CertificateType:     "Service Award",
		RecipientName:       "John Doe",
		CreatorName:         "Admin User",
		IssueDate:           "2026-08-15",
		NumberOfSignatories: 2,
		Signatory1Name:      "Alice Director",
		Signatory1Role:      "Director",
		Signatory2Name:      "Bob Manager",
		Signatory2Role:      "Manager",
		Approvers: []model.Approver{
			{Name: "Jane Approver", Email: "jane@example.com"},
			{Name: "Mark Approver", Email: "mark@example.com"},
		},
		Image: []byte("png-bytes"),
	}
}

func TestSubmit(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, cert.ID)
	assert.Equal(t, model.StatusPending, cert.Status)
	assert.NotEmpty(t, cert.ArtifactRef)
	assert.True(t, f.store.has(cert.ArtifactRef))

	// 每个审批人都收到一条通知
	assert.Eventually(t, func() bool {
		return f.notifier.count() == 2
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"jane@example.com", "mark@example.com"}, f.notifier.emails())
}

func TestSubmit_DefaultType(t *testing.T) {
	f := setupService(t, true)

	req := validSubmitRequest()
	req.CertificateType = ""
	cert, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCertificateType, cert.CertificateType)
}

func TestSubmit_Validation(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
		field  string
	}{
		{"缺少接收人", func(r *SubmitRequest) { r.RecipientName = "" }, "recipientName"},
		{"缺少发起人", func(r *SubmitRequest) { r.CreatorName = " " }, "creatorName"},
		{"缺少签发日期", func(r *SubmitRequest) { r.IssueDate = "" }, "issueDate"},
		{"签署人数为零", func(r *SubmitRequest) { r.NumberOfSignatories = 0 }, "numberOfSignatories"},
		{"签署人数超限", func(r *SubmitRequest) { r.NumberOfSignatories = 3 }, "numberOfSignatories"},
		{"缺少第一签署人", func(r *SubmitRequest) { r.Signatory1Name = "" }, "signatory1Name"},
		{"缺少第二签署人", func(r *SubmitRequest) { r.Signatory2Name = "" }, "signatory2Name"},
		{"无审批人", func(r *SubmitRequest) { r.Approvers = nil }, "approvers"},
		{"审批人缺邮箱", func(r *SubmitRequest) { r.Approvers[0].Email = "" }, "approvers"},
		{"缺少证书图片", func(r *SubmitRequest) { r.Image = nil }, "certificatePng"},
		// 图片校验先于审批人校验
		{"同时缺少图片和审批人", func(r *SubmitRequest) { r.Image = nil; r.Approvers = nil }, "certificatePng"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmitRequest()
			tt.mutate(req)
			_, err := f.svc.Submit(ctx, req)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	// 校验失败不应写入任何制品
	assert.Equal(t, 0, f.store.count())
}

func TestSubmit_SingleSignatory(t *testing.T) {
	f := setupService(t, true)

	req := validSubmitRequest()
	req.NumberOfSignatories = 1
	req.Signatory2Name = ""
	req.Signatory2Role = ""
	_, err := f.svc.Submit(context.Background(), req)
	assert.NoError(t, err)
}

func TestSubmit_StoreFailure(t *testing.T) {
	f := setupService(t, true)
	f.store.failPut = true

	_, err := f.svc.Submit(context.Background(), validSubmitRequest())
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}

func TestListPendingForApprover(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)

	// 邮箱匹配不区分大小写
	list, err := f.svc.ListPendingForApprover(ctx, "JANE@Example.COM")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cert.ID, list[0].ID)

	// 无关邮箱看不到任何记录
	list, err = f.svc.ListPendingForApprover(ctx, "stranger@example.com")
	require.NoError(t, err)
	assert.Empty(t, list)

	// 空邮箱是校验错误
	_, err = f.svc.ListPendingForApprover(ctx, "  ")
	assert.True(t, IsValidationError(err))
}

func TestApprove(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)
	originalRef := cert.ArtifactRef

	approved, err := f.svc.Approve(ctx, cert.ID, []byte("signed-png"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, cert.ID, approved.SourceID)
	assert.NotEqual(t, originalRef, approved.ArtifactRef)

	// 签名图片已写入,默认保留原始图片
	assert.True(t, f.store.has(approved.ArtifactRef))
	assert.True(t, f.store.has(originalRef))

	// 待审批集合中不再可见
	_, err = f.svc.Get(ctx, cert.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// 出现在已批准集合中
	list, err := f.svc.ListApproved(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, approved.ID, list[0].ID)
}

func TestApprove_PurgeOriginal(t *testing.T) {
	f := setupService(t, false)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, cert.ID, []byte("signed-png"))
	require.NoError(t, err)

	assert.True(t, f.store.has(approved.ArtifactRef))
	assert.False(t, f.store.has(cert.ArtifactRef))
}

func TestApprove_Idempotency(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, cert.ID, []byte("signed-png"))
	require.NoError(t, err)

	// 第二次批准:记录已消费,签名制品被回收
	before := f.store.count()
	_, err = f.svc.Approve(ctx, cert.ID, []byte("signed-again"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, before, f.store.count())

	// 批准后拒绝同样失败
	_, err = f.svc.Reject(ctx, cert.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprove_RequiresSignedImage(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, cert.ID, nil)
	assert.True(t, IsValidationError(err))

	// 记录仍处于待审批状态
	got, err := f.svc.Get(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestApprove_UnknownID(t *testing.T) {
	f := setupService(t, true)

	_, err := f.svc.Approve(context.Background(), "missing-id", []byte("signed"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReject(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)

	// 拒绝后对审批人不可见
	list, err := f.svc.ListPendingForApprover(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Empty(t, list)

	// 但按 ID 仍可查询到终态记录
	got, err := f.svc.Get(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)

	// 拒绝后再批准或再拒绝都失败
	_, err = f.svc.Approve(ctx, cert.ID, []byte("signed"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Reject(ctx, cert.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolutionNotifications(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, cert.ID, []byte("signed-png"))
	require.NoError(t, err)

	// 每个审批人都收到批准结果通知
	assert.Eventually(t, func() bool {
		return len(f.notifier.resolvedOutcomes()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"approved", "approved"}, f.notifier.resolvedOutcomes())

	other, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, other.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(f.notifier.resolvedOutcomes()) == 4
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"approved", "approved", "rejected", "rejected"}, f.notifier.resolvedOutcomes())
}

func TestDeleteApproved(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)
	approved, err := f.svc.Approve(ctx, cert.ID, []byte("signed-png"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteApproved(ctx, approved.ID))

	// 签名制品已清理
	assert.False(t, f.store.has(approved.ArtifactRef))

	_, err = f.svc.GetApproved(ctx, approved.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// 重复删除返回 NotFound
	err = f.svc.DeleteApproved(ctx, approved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetArtifact(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)

	artifact, err := f.svc.GetArtifact(ctx, cert.ArtifactRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), artifact.Data)

	_, err = f.svc.GetArtifact(ctx, "missing/ref.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuditTrail(t *testing.T) {
	f := setupService(t, true)
	ctx := context.Background()

	cert, err := f.svc.Submit(ctx, validSubmitRequest())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, cert.ID, []byte("signed"))
	require.NoError(t, err)

	var logs []*model.AuditLogModel
	require.NoError(t, f.db.Where("resource_id = ?", cert.ID).Order("created_at").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "submit", logs[0].Action)
	assert.Equal(t, "approve", logs[1].Action)
}
