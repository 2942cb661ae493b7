package dependencies

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Xushengqwer/go-common/core"
	"github.com/tencentyun/cos-go-sdk-v5"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/config"
)

// COSClientInterface 定义了附件对象存储需要实现的方法。
// 异步 worker 在附件后处理完成后调用 UploadFile 上传处理结果；
// 对象键由评论 ID 决定，重复上传覆盖同一对象，保证重复消费是幂等的。
type COSClientInterface interface {
	GetClient() *cos.Client
	// UploadFile 从 io.Reader 上传文件，并返回其公开可访问的 URL。
	// 调用方负责生成对象键。
	UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error)
	// DeleteObject 从 COS 删除一个对象。
	DeleteObject(ctx context.Context, objectKey string) error
}

type cosClient struct {
	client              *cos.Client
	sdkBucketURL        *url.URL // SDK 操作时使用的存储桶 URL
	publicAccessURLBase *url.URL // 拼接对象公开访问 URL 的基础部分
	logger              *core.ZapLogger
	cfg                 *config.COSConfig
}

// InitCOS 初始化腾讯云 COS 客户端。
func InitCOS(cfg *config.COSConfig, logger *core.ZapLogger) (COSClientInterface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("COS 配置不能为nil")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" || cfg.BucketName == "" || cfg.AppID == "" || cfg.Region == "" {
		logger.Error("COS 配置不完整", zap.Any("配置详情", cfg))
		return nil, fmt.Errorf("COS 配置不完整，缺少关键字段 (SecretID, SecretKey, BucketName, AppID, Region)")
	}

	sdkBucketURLStr := fmt.Sprintf("https://%s-%s.cos.%s.myqcloud.com", cfg.BucketName, cfg.AppID, cfg.Region)
	sdkURL, err := url.Parse(sdkBucketURLStr)
	if err != nil {
		logger.Error("解析 COS 存储桶 SDK 操作 URL 失败", zap.String("url", sdkBucketURLStr), zap.Error(err))
		return nil, fmt.Errorf("解析 COS 存储桶 SDK 操作 URL '%s' 失败: %w", sdkBucketURLStr, err)
	}

	// BaseURL 配置了 CDN / 自定义域名时，公开访问 URL 以其为基础；
	// 否则公有读桶的标准访问 URL 与 SDK 操作 URL 结构一致。
	var finalPublicURLBase *url.URL
	if cfg.BaseURL != "" {
		pu, parseErr := url.Parse(cfg.BaseURL)
		if parseErr != nil {
			logger.Error("解析配置的 COS 公共访问 BaseURL 失败", zap.String("baseURL", cfg.BaseURL), zap.Error(parseErr))
			return nil, fmt.Errorf("解析提供的 COS 公共访问 BaseURL '%s' 失败: %w", cfg.BaseURL, parseErr)
		}
		finalPublicURLBase = pu
	} else {
		finalPublicURLBase = sdkURL
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: sdkURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	logger.Info("COS 客户端初始化成功",
		zap.String("存储桶名称", cfg.BucketName),
		zap.String("地域", cfg.Region),
		zap.String("公共访问基础URL", finalPublicURLBase.String()),
	)

	return &cosClient{
		client:              client,
		sdkBucketURL:        sdkURL,
		publicAccessURLBase: finalPublicURLBase,
		logger:              logger,
		cfg:                 cfg,
	}, nil
}

func (c *cosClient) GetClient() *cos.Client {
	return c.client
}

// buildPublicObjectURL 构建对象的完整公共访问 URL。
func (c *cosClient) buildPublicObjectURL(objectKey string) string {
	basePath := c.publicAccessURLBase.Path
	if basePath != "/" && !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	finalURL := *c.publicAccessURLBase
	finalURL.Path = basePath + strings.TrimPrefix(objectKey, "/")
	return finalURL.String()
}

// UploadFile 从 io.Reader 上传文件，并返回其公开可访问的 URL。
func (c *cosClient) UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error) {
	opts := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: size,
		},
	}

	resp, err := c.client.Object.Put(ctx, objectKey, reader, opts)
	if err != nil {
		c.logger.Error("COS 文件上传 API 调用失败", zap.String("对象键", objectKey), zap.Error(err))
		return "", fmt.Errorf("上传文件 '%s' 到 COS 失败: %w", objectKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errMsgBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("COS 文件上传返回非200状态码",
			zap.String("对象键", objectKey),
			zap.Int("状态码", resp.StatusCode),
			zap.String("响应信息", string(errMsgBytes)),
		)
		return "", fmt.Errorf("COS 文件上传失败，状态码: %d, 响应: %s", resp.StatusCode, string(errMsgBytes))
	}

	publicURL := c.buildPublicObjectURL(objectKey)
	c.logger.Info("COS 文件上传成功", zap.String("对象键", objectKey), zap.String("公开访问URL", publicURL))
	return publicURL, nil
}

// DeleteObject 从 COS 删除一个对象。
func (c *cosClient) DeleteObject(ctx context.Context, objectKey string) error {
	resp, err := c.client.Object.Delete(ctx, objectKey)
	if err != nil {
		c.logger.Error("COS 对象删除 API 调用失败", zap.String("对象键", objectKey), zap.Error(err))
		return fmt.Errorf("从 COS 删除对象 '%s' 失败: %w", objectKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		errMsgBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("COS 对象删除返回非成功状态码",
			zap.String("对象键", objectKey),
			zap.Int("状态码", resp.StatusCode),
			zap.String("响应信息", string(errMsgBytes)))
		return fmt.Errorf("COS 对象删除失败，状态码: %d, 响应: %s", resp.StatusCode, string(errMsgBytes))
	}
	return nil
}
