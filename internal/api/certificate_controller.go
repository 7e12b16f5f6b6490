package api

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kirifer/ITS-certificate-generator/internal/model"
	"github.com/Kirifer/ITS-certificate-generator/internal/service"
	"github.com/Kirifer/ITS-certificate-generator/internal/utils"
)

// maxUploadSize 证书图片上传大小上限
const maxUploadSize = 10 << 20 // 10 MB

// CertificateController 证书审批控制器
type CertificateController struct {
	certService  service.CertificateService
	auditService service.AuditLogService
}

// NewCertificateController 创建证书审批控制器
func NewCertificateController(certService service.CertificateService, auditService service.AuditLogService) *CertificateController {
	return &CertificateController{
		certService:  certService,
		auditService: auditService,
	}
}

// CertificateResponse 证书响应
type CertificateResponse struct {
	ID                  string           `json:"id"`
	CertificateType     string           `json:"certificateType"`
	RecipientName       string           `json:"recipientName"`
	CreatorName         string           `json:"creatorName"`
	IssueDate           string           `json:"issueDate"`
	NumberOfSignatories int              `json:"numberOfSignatories"`
	Signatory1Name      string           `json:"signatory1Name"`
	Signatory1Role      string           `json:"signatory1Role"`
	Signatory2Name      string           `json:"signatory2Name,omitempty"`
	Signatory2Role      string           `json:"signatory2Role,omitempty"`
	Approvers           []model.Approver `json:"approvers"`
	Extra               json.RawMessage  `json:"extra,omitempty"`
	ArtifactRef         string           `json:"artifactRef"`
	Status              string           `json:"status"`
	CreatedAt           time.Time        `json:"createdAt"`
}

// ApprovedCertificateResponse 已批准证书响应
type ApprovedCertificateResponse struct {
	ID                  string           `json:"id"`
	SourceID            string           `json:"sourceId"`
	CertificateType     string           `json:"certificateType"`
	RecipientName       string           `json:"recipientName"`
	CreatorName         string           `json:"creatorName"`
	IssueDate           string           `json:"issueDate"`
	NumberOfSignatories int              `json:"numberOfSignatories"`
	Signatory1Name      string           `json:"signatory1Name"`
	Signatory1Role      string           `json:"signatory1Role"`
	Signatory2Name      string           `json:"signatory2Name,omitempty"`
	Signatory2Role      string           `json:"signatory2Role,omitempty"`
	Approvers           []model.Approver `json:"approvers"`
	Extra               json.RawMessage  `json:"extra,omitempty"`
	ArtifactRef         string           `json:"artifactRef"`
	Status              string           `json:"status"`
	ApprovedAt          time.Time        `json:"approvedAt"`
}

// toCertificateResponse 序列化待审批证书
func toCertificateResponse(cert *model.CertificateModel) *CertificateResponse {
	approvers, _ := cert.ApproverList()
	return &CertificateResponse{
		ID:                  cert.ID,
		CertificateType:     cert.CertificateType,
		RecipientName:       cert.RecipientName,
		CreatorName:         cert.CreatorName,
		IssueDate:           cert.IssueDate,
		NumberOfSignatories: cert.NumberOfSignatories,
		Signatory1Name:      cert.Signatory1Name,
		Signatory1Role:      cert.Signatory1Role,
		Signatory2Name:      cert.Signatory2Name,
		Signatory2Role:      cert.Signatory2Role,
		Approvers:           approvers,
		Extra:               json.RawMessage(cert.Extra),
		ArtifactRef:         cert.ArtifactRef,
		Status:              cert.Status,
		CreatedAt:           cert.CreatedAt,
	}
}

// toApprovedResponse 序列化已批准证书
func toApprovedResponse(cert *model.ApprovedCertificateModel) *ApprovedCertificateResponse {
	approvers, _ := model.DecodeApprovers(cert.Approvers)
	return &ApprovedCertificateResponse{
		ID:                  cert.ID,
		SourceID:            cert.SourceID,
		CertificateType:     cert.CertificateType,
		RecipientName:       cert.RecipientName,
		CreatorName:         cert.CreatorName,
		IssueDate:           cert.IssueDate,
		NumberOfSignatories: cert.NumberOfSignatories,
		Signatory1Name:      cert.Signatory1Name,
		Signatory1Role:      cert.Signatory1Role,
		Signatory2Name:      cert.Signatory2Name,
		Signatory2Role:      cert.Signatory2Role,
		Approvers:           approvers,
		Extra:               json.RawMessage(cert.Extra),
		ArtifactRef:         cert.ArtifactRef,
		Status:              cert.Status,
		ApprovedAt:          cert.ApprovedAt,
	}
}

// validateCertificateID 验证路径中的证书 ID
func (c *CertificateController) validateCertificateID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateCertificateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid certificate ID", err.Error())
		return false
	}
	return true
}

// readUpload 读取 multipart 上传的证书图片
func readUpload(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(io.LimitReader(src, maxUploadSize))
}

// scanApprovers 扫描 approverName0/approverEmail0 起的编号表单字段
// 遇到第一个缺失的序号即停止
func scanApprovers(form map[string][]string) []model.Approver {
	var approvers []model.Approver
	for i := 0; ; i++ {
		names, nameOK := form["approverName"+strconv.Itoa(i)]
		emails, emailOK := form["approverEmail"+strconv.Itoa(i)]
		if !nameOK && !emailOK {
			break
		}
		approver := model.Approver{}
		if nameOK && len(names) > 0 {
			approver.Name = strings.TrimSpace(names[0])
		}
		if emailOK && len(emails) > 0 {
			approver.Email = strings.TrimSpace(emails[0])
		}
		approvers = append(approvers, approver)
	}
	return approvers
}

// maxTextFieldLen 自由文本表单字段长度上限
const maxTextFieldLen = 200

// sanitizedField 清理并校验自由文本字段
// 空值放行,由工作流引擎按字段顺序报告缺失
func sanitizedField(ctx *gin.Context, name string) (string, bool) {
	raw := ctx.PostForm(name)
	if strings.TrimSpace(raw) == "" {
		return "", true
	}
	value, err := utils.TrimAndValidate(raw, maxTextFieldLen)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid "+name, err.Error())
		return "", false
	}
	return value, true
}

// Submit 提交证书进入审批流
func (c *CertificateController) Submit(ctx *gin.Context) {
	if err := ctx.Request.ParseMultipartForm(maxUploadSize); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	form := ctx.Request.MultipartForm.Value

	numberOfSignatories, _ := strconv.Atoi(ctx.PostForm("numberOfSignatories"))

	req := &service.SubmitRequest{
		CertificateType:     ctx.PostForm("certificate_type"),
		IssueDate:           ctx.PostForm("issueDate"),
		NumberOfSignatories: numberOfSignatories,
		Approvers:           scanApprovers(form),
	}
	var ok bool
	for _, field := range []struct {
		name string
		dst  *string
	}{
		{"recipientName", &req.RecipientName},
		{"creator_name", &req.CreatorName},
		{"signatory1Name", &req.Signatory1Name},
		{"signatory1Role", &req.Signatory1Role},
		{"signatory2Name", &req.Signatory2Name},
		{"signatory2Role", &req.Signatory2Role},
	} {
		if *field.dst, ok = sanitizedField(ctx, field.name); !ok {
			return
		}
	}

	if extra := ctx.PostForm("extra"); extra != "" {
		req.Extra = json.RawMessage(extra)
	}

	file, err := ctx.FormFile("certificatePng")
	if err == nil {
		image, readErr := readUpload(file)
		if readErr != nil {
			Error(ctx, http.StatusBadRequest, "failed to read certificate image", readErr.Error())
			return
		}
		req.Image = image
	}

	cert, err := c.certService.Submit(ctx.Request.Context(), req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	Created(ctx, toCertificateResponse(cert))
}

// ListPending 查询指定审批人可见的待审批证书
func (c *CertificateController) ListPending(ctx *gin.Context) {
	email := ctx.Query("approverEmail")
	if email == "" {
		email = ctx.Query("email")
	}
	if err := utils.ValidateEmail(email); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid approver email", err.Error())
		return
	}

	certs, err := c.certService.ListPendingForApprover(ctx.Request.Context(), email)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	responses := make([]*CertificateResponse, 0, len(certs))
	for _, cert := range certs {
		responses = append(responses, toCertificateResponse(cert))
	}
	Success(ctx, responses)
}

// Get 按 ID 查询证书(含已拒绝的终态记录)
func (c *CertificateController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateCertificateID(ctx, id) {
		return
	}

	cert, err := c.certService.Get(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	Success(ctx, toCertificateResponse(cert))
}

// Approve 批准证书,携带签名后的最终图片
func (c *CertificateController) Approve(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateCertificateID(ctx, id) {
		return
	}

	var signedImage []byte
	file, err := ctx.FormFile("certificatePng")
	if err == nil {
		signedImage, err = readUpload(file)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "failed to read certificate image", err.Error())
			return
		}
	}

	approved, err := c.certService.Approve(ctx.Request.Context(), id, signedImage)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	Success(ctx, toApprovedResponse(approved))
}

// Reject 拒绝证书
func (c *CertificateController) Reject(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateCertificateID(ctx, id) {
		return
	}

	cert, err := c.certService.Reject(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	Success(ctx, toCertificateResponse(cert))
}

// ListApproved 查询所有已批准证书
func (c *CertificateController) ListApproved(ctx *gin.Context) {
	certs, err := c.certService.ListApproved(ctx.Request.Context())
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	responses := make([]*ApprovedCertificateResponse, 0, len(certs))
	for _, cert := range certs {
		responses = append(responses, toApprovedResponse(cert))
	}
	Success(ctx, responses)
}

// GetApproved 按 ID 查询已批准证书
func (c *CertificateController) GetApproved(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateCertificateID(ctx, id) {
		return
	}

	cert, err := c.certService.GetApproved(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	Success(ctx, toApprovedResponse(cert))
}

// DeleteApproved 删除已批准证书
func (c *CertificateController) DeleteApproved(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateCertificateID(ctx, id) {
		return
	}

	if err := c.certService.DeleteApproved(ctx.Request.Context(), id); err != nil {
		handleServiceError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id})
}

// GetArtifact 下载证书图片制品
func (c *CertificateController) GetArtifact(ctx *gin.Context) {
	ref := strings.TrimPrefix(ctx.Param("ref"), "/")

	artifact, err := c.certService.GetArtifact(ctx.Request.Context(), ref)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.Data(http.StatusOK, contentType, artifact.Data)
}

// GetAuditTrail 查询证书的审计轨迹
func (c *CertificateController) GetAuditTrail(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateCertificateID(ctx, id) {
		return
	}

	logs, err := c.auditService.GetByResource(ctx.Request.Context(), id)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	Success(ctx, logs)
}

// ListTypes 证书类型目录
func (c *CertificateController) ListTypes(ctx *gin.Context) {
	Success(ctx, []string{
		model.DefaultCertificateType,
		"Service Award",
		"Training Certificate",
		"Recognition Certificate",
	})
}
