package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// fgaTimeout 单次 OpenFGA 调用超时
const fgaTimeout = 5 * time.Second

// OpenFGAClient OpenFGA 客户端, 实现 service.Authorizer
type OpenFGAClient struct {
	client  *client.OpenFgaClient
	storeID string
	modelID string
}

// NewOpenFGAClient 创建 OpenFGA 客户端, modelID 为空时使用 store 的最新模型
func NewOpenFGAClient(apiURL string, storeID string, modelID string) (*OpenFGAClient, error) {
	if storeID == "" {
		return nil, fmt.Errorf("openfga store id is required")
	}
	configuration := client.ClientConfiguration{
		ApiUrl:               apiURL,
		StoreId:              storeID,
		AuthorizationModelId: modelID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodNone,
		},
	}

	fgaClient, err := client.NewSdkClient(&configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	return &OpenFGAClient{
		client:  fgaClient,
		storeID: storeID,
		modelID: modelID,
	}, nil
}

// tuple 用户 user:<id>, 对象 <type>:<id>
func tuple(userID, objectType, objectID string) (string, string) {
	return "user:" + userID, objectType + ":" + objectID
}

// CheckPermission 检查用户对采购申请等对象是否有 relation 关系
func (c *OpenFGAClient) CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error) {
	user, object := tuple(userID, objectType, objectID)
	ctx, cancel := context.WithTimeout(ctx, fgaTimeout)
	defer cancel()

	response, err := c.client.Check(ctx).Body(client.ClientCheckRequest{
		User:     user,
		Relation: relation,
		Object:   object,
	}).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to check %s on %s: %w", relation, object, err)
	}
	return response.GetAllowed(), nil
}

// SetRelation 写入关系, 创建采购申请时把申请人写为 operator
func (c *OpenFGAClient) SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	user, object := tuple(userID, objectType, objectID)
	ctx, cancel := context.WithTimeout(ctx, fgaTimeout)
	defer cancel()

	_, err := c.client.Write(ctx).Body(client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{{User: user, Relation: relation, Object: object}},
	}).Execute()
	if err != nil {
		return fmt.Errorf("failed to write %s on %s: %w", relation, object, err)
	}
	return nil
}

// DeleteRelation 删除关系
func (c *OpenFGAClient) DeleteRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	user, object := tuple(userID, objectType, objectID)
	ctx, cancel := context.WithTimeout(ctx, fgaTimeout)
	defer cancel()

	_, err := c.client.Write(ctx).Body(client.ClientWriteRequest{
		Deletes: []client.ClientTupleKeyWithoutCondition{{User: user, Relation: relation, Object: object}},
	}).Execute()
	if err != nil {
		return fmt.Errorf("failed to delete %s on %s: %w", relation, object, err)
	}
	return nil
}

// ping 读取一次 tuple 检查连接
func (c *OpenFGAClient) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fgaTimeout)
	defer cancel()
	_, err := c.client.Read(ctx).Execute()
	return err
}

// NewOpenFGAClientWithRetry 带重试的 OpenFGA 客户端创建, 每次重试间隔翻倍
func NewOpenFGAClientWithRetry(apiURL string, storeID string, modelID string, maxRetries int, retryInterval time.Duration) (*OpenFGAClient, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		fgaClient, err := NewOpenFGAClient(apiURL, storeID, modelID)
		if err == nil {
			if err = fgaClient.ping(context.Background()); err == nil {
				return fgaClient, nil
			}
		}
		lastErr = err

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}
	return nil, fmt.Errorf("failed to connect OpenFGA after %d retries: %w", maxRetries, lastErr)
}

// CheckHealth 检查 OpenFGA 连接健康状态
func (c *OpenFGAClient) CheckHealth(ctx context.Context) bool {
	if c == nil || c.client == nil {
		return false
	}
	return c.ping(ctx) == nil
}
