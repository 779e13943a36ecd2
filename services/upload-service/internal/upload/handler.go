package upload

import (
	"errors"
	"net/http"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/gin-gonic/gin"

	"terminal-terrace/response"
	"terminal-terrace/upload-service/internal/dto"
	"terminal-terrace/upload-service/internal/middleware"
	"terminal-terrace/upload-service/internal/plupload"
)

const (
	// multipart 表单除文件外的字段和边界占用的额外空间
	multipartOverhead = 64 * datasize.KB
	// 超过这个大小的表单文件落到临时文件
	multipartMemory = 32 << 20
)

// HandlerOptions 请求解析相关的配置
type HandlerOptions struct {
	FileField    string
	MaxChunkSize datasize.ByteSize
	// 严格校验 chunk/chunks，非法值返回错误而不是按 0 处理
	StrictParams bool
}

type Handler struct {
	service *Service
	opts    HandlerOptions
}

func NewHandler(service *Service, opts HandlerOptions) *Handler {
	if opts.FileField == "" {
		opts.FileField = "file"
	}
	return &Handler{service: service, opts: opts}
}

// Upload 接收一个分块
// @Summary 分块上传
// @Description plupload 协议：chunk 为 0 起的分块序号，chunks 为分块总数，name 为文件名。multipart 请求从 file 字段读取分块，其他请求直接读取请求体
// @Tags upload
// @Accept multipart/form-data,application/octet-stream
// @Produce json
// @Param chunk query int false "分块序号"
// @Param chunks query int false "分块总数"
// @Param name query string false "文件名"
// @Param file formData file false "分块内容"
// @Success 200 {object} response.Response{data=ChunkResponse}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 413 {object} response.Response
// @Failure 423 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /upload [post]
func (h *Handler) Upload(c *gin.Context) {
	isMultipart := strings.HasPrefix(c.ContentType(), "multipart/form-data")

	if h.opts.MaxChunkSize > 0 {
		limit := h.opts.MaxChunkSize
		if isMultipart {
			limit += multipartOverhead
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(limit.Bytes()))
	}

	// 先解析表单，chunk/chunks/name 可能在表单里
	if isMultipart {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if !errors.As(err, &tooLarge) {
				err = errors.Join(plupload.ErrInvalidUpload, err)
			}
			dto.StatusErrorResponse(c, toBusinessError(err))
			return
		}
	}

	req, err := h.bindChunkRequest(c, isMultipart)
	if err != nil {
		dto.StatusErrorResponse(c, toBusinessError(err))
		return
	}

	var resp *ChunkResponse
	if isMultipart {
		upload := plupload.NewMultipartFile(c.FormFile(h.opts.FileField))
		resp, err = h.service.ProcessMultipart(c.Request.Context(), req, upload)
	} else {
		resp, err = h.service.ProcessStream(c.Request.Context(), req, c.Request.Body)
	}
	if err != nil {
		dto.StatusErrorResponse(c, toBusinessError(err))
		return
	}

	dto.SuccessResponse(c, resp)
}

// Status 查询分块上传进度
// @Summary 分块上传进度
// @Tags upload
// @Produce json
// @Param name query string true "文件名"
// @Param chunks query int true "分块总数"
// @Success 200 {object} response.Response{data=StatusResponse}
// @Failure 400 {object} response.Response
// @Router /upload/status [get]
func (h *Handler) Status(c *gin.Context) {
	var q StatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.StatusErrorResponse(c, dto.ValidationError(err, response.UploadInvalidArgument))
		return
	}

	resp, err := h.service.Status(c.Request.Context(), q)
	if err != nil {
		dto.StatusErrorResponse(c, toBusinessError(err))
		return
	}
	dto.SuccessResponse(c, resp)
}

func (h *Handler) bindChunkRequest(c *gin.Context, isMultipart bool) (ChunkRequest, error) {
	param := func(name string) string {
		if isMultipart {
			if v, ok := c.GetPostForm(name); ok {
				return v
			}
		}
		return c.Query(name)
	}

	req := ChunkRequest{Name: param("name")}
	if user := middleware.CurrentUser(c); user != nil {
		req.UserID = user.UserID
	}

	if !h.opts.StrictParams {
		req.Chunk = plupload.ParseChunkParam(param("chunk"))
		req.Chunks = plupload.ParseChunkParam(param("chunks"))
		return req, nil
	}

	var err error
	if req.Chunk, err = plupload.ParseChunkParamStrict("chunk", param("chunk")); err != nil {
		return req, err
	}
	if req.Chunks, err = plupload.ParseChunkParamStrict("chunks", param("chunks")); err != nil {
		return req, err
	}
	if req.Chunks >= 2 && req.Chunk >= req.Chunks {
		return req, errors.Join(plupload.ErrInvalidArgument, errors.New("chunk must be less than chunks"))
	}
	return req, nil
}
