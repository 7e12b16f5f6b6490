package repository_test

import (
	"testing"
	"time"

	"github.com/Kirifer/ITS-certificate-generator/internal/database"
	"github.com/Kirifer/ITS-certificate-generator/internal/model"
	"github.com/Kirifer/ITS-certificate-generator/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = database.Migrate(db)
	require.NoError(t, err)

	return db
}

// newPendingCertificate 构造待审批证书
func newPendingCertificate(t *testing.T, approvers ...model.Approver) *model.CertificateModel {
	if len(approvers) == 0 {
		approvers = []model.Approver{{Name: "Bob", Email: "bob@x.com"}}
	}
	data, err := model.EncodeApprovers(approvers)
	require.NoError(t, err)

	return &model.CertificateModel{
		ID:                  uuid.New().String(),
		CertificateType:     "Employee of the Year",
		RecipientName:       "Jane Doe",
		CreatorName:         "Alice",
		IssueDate:           "2024-01-01",
		NumberOfSignatories: 1,
		Signatory1Name:      "Boss",
		Signatory1Role:      "Manager",
		Approvers:           data,
		ArtifactRef:         "uploads/original.png",
		Status:              model.StatusPending,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
}

// TestCertificateRepository_Create 测试保存待审批证书
func TestCertificateRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)

	cert := newPendingCertificate(t)
	err := repo.Create(cert)
	assert.NoError(t, err)

	found, err := repo.FindByID(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", found.RecipientName)
	assert.Equal(t, model.StatusPending, found.Status)
}

// TestCertificateRepository_FindByID_NotFound 测试查找不存在的证书
func TestCertificateRepository_FindByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)

	_, err := repo.FindByID("no-such-id")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestCertificateRepository_ListPendingForApprover 测试按审批人邮箱过滤
func TestCertificateRepository_ListPendingForApprover(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)

	certBob := newPendingCertificate(t, model.Approver{Name: "Bob", Email: "bob@x.com"})
	certCarol := newPendingCertificate(t, model.Approver{Name: "Carol", Email: "carol@x.com"})
	certBoth := newPendingCertificate(t,
		model.Approver{Name: "Bob", Email: "Bob@X.com"},
		model.Approver{Name: "Carol", Email: "carol@x.com"},
	)
	require.NoError(t, repo.Create(certBob))
	require.NoError(t, repo.Create(certCarol))
	require.NoError(t, repo.Create(certBoth))

	// Bob 能看到两条(含大小写不同的邮箱)
	list, err := repo.ListPendingForApprover("bob@x.com")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// 大小写不敏感
	list, err = repo.ListPendingForApprover("BOB@X.COM")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Carol 也能看到两条
	list, err = repo.ListPendingForApprover("carol@x.com")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// 不相关的邮箱看不到任何记录
	list, err = repo.ListPendingForApprover("mallory@x.com")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestCertificateRepository_ListPendingForApprover_EmptyEmail 测试空邮箱
func TestCertificateRepository_ListPendingForApprover_EmptyEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)

	_, err := repo.ListPendingForApprover("")
	assert.ErrorIs(t, err, repository.ErrEmptyApproverEmail)
}

// TestCertificateRepository_ListPendingForApprover_ExcludesRejected 测试已拒绝记录不可见
func TestCertificateRepository_ListPendingForApprover_ExcludesRejected(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)

	cert := newPendingCertificate(t)
	require.NoError(t, repo.Create(cert))
	require.NoError(t, repo.MarkRejected(cert.ID))

	list, err := repo.ListPendingForApprover("bob@x.com")
	require.NoError(t, err)
	assert.Empty(t, list)

	// 记录本身仍然可以按 ID 查询,状态为 rejected
	found, err := repo.FindByID(cert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, found.Status)
}

// TestCertificateRepository_MarkRejected_Guard 测试拒绝的条件更新语义
func TestCertificateRepository_MarkRejected_Guard(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)

	cert := newPendingCertificate(t)
	require.NoError(t, repo.Create(cert))

	// 第一次拒绝成功
	assert.NoError(t, repo.MarkRejected(cert.ID))

	// 第二次拒绝失败: 记录已不再是 pending
	assert.ErrorIs(t, repo.MarkRejected(cert.ID), gorm.ErrRecordNotFound)

	// 不存在的 ID 同样失败
	assert.ErrorIs(t, repo.MarkRejected("no-such-id"), gorm.ErrRecordNotFound)
}

// TestCertificateRepository_MoveToApproved 测试批准迁移
func TestCertificateRepository_MoveToApproved(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)
	approvedRepo := repository.NewApprovedCertificateRepository(db)

	cert := newPendingCertificate(t)
	require.NoError(t, repo.Create(cert))

	approved, originalRef, err := repo.MoveToApproved(cert.ID, "uploads/signed.png")
	require.NoError(t, err)
	assert.Equal(t, "uploads/original.png", originalRef)
	assert.Equal(t, cert.ID, approved.SourceID)
	assert.Equal(t, "uploads/signed.png", approved.ArtifactRef)
	assert.Equal(t, model.StatusApproved, approved.Status)

	// 待审批空间中的记录已删除
	_, err = repo.FindByID(cert.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 已批准空间恰好出现一条记录
	list, err := approvedRepo.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, approved.ID, list[0].ID)
}

// TestCertificateRepository_MoveToApproved_Idempotency 测试重复批准失败
func TestCertificateRepository_MoveToApproved_Idempotency(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)

	cert := newPendingCertificate(t)
	require.NoError(t, repo.Create(cert))

	_, _, err := repo.MoveToApproved(cert.ID, "uploads/signed.png")
	require.NoError(t, err)

	// 第二次批准: 记录已被消费
	_, _, err = repo.MoveToApproved(cert.ID, "uploads/signed2.png")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 批准后再拒绝同样失败
	assert.ErrorIs(t, repo.MarkRejected(cert.ID), gorm.ErrRecordNotFound)
}

// TestCertificateRepository_MoveToApproved_AfterReject 测试拒绝后不可批准
func TestCertificateRepository_MoveToApproved_AfterReject(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)

	cert := newPendingCertificate(t)
	require.NoError(t, repo.Create(cert))
	require.NoError(t, repo.MarkRejected(cert.ID))

	_, _, err := repo.MoveToApproved(cert.ID, "uploads/signed.png")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestApprovedCertificateRepository_Delete 测试删除已批准证书
func TestApprovedCertificateRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCertificateRepository(db)
	approvedRepo := repository.NewApprovedCertificateRepository(db)

	cert := newPendingCertificate(t)
	require.NoError(t, repo.Create(cert))
	approved, _, err := repo.MoveToApproved(cert.ID, "uploads/signed.png")
	require.NoError(t, err)

	assert.NoError(t, approvedRepo.Delete(approved.ID))

	// 再次删除失败
	assert.ErrorIs(t, approvedRepo.Delete(approved.ID), gorm.ErrRecordNotFound)

	list, err := approvedRepo.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
