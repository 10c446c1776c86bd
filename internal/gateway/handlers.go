package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"
	"github.com/zeromicro/go-zero/rest/pathvar"

	"settlement-sol/internal/mq"
	"settlement-sol/internal/rpcclient"
	"settlement-sol/internal/session"
	"settlement-sol/internal/storage"
	"settlement-sol/internal/svc"
	"settlement-sol/internal/types"
	"settlement-sol/pkg/logger"
)

// HTTP 网关：钱包签名登录挑战 + listing 元数据读写。
// 写路径的授权链：挑战验签（持有私钥）+ 链上 listing.Authority 比对（持有该 listing）。
// 链上程序只信任交易签名，这里的授权只保护元数据存储。

const loginScope = "login"

// 请求体上限，挑战 scope 与元数据文档都不应超过
const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func RegisterHandlers(server *rest.Server, svcCtx *svc.GatewayServiceContext) {
	server.AddRoutes([]rest.Route{
		{Method: http.MethodGet, Path: "/signature_message/:public_key", Handler: signatureMessageHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/v1/challenge/:public_key", Handler: challengeHandler(svcCtx)},
		{Method: http.MethodGet, Path: "/v1/listings/:public_key", Handler: getListingHandler(svcCtx)},
		{Method: http.MethodPost, Path: "/v1/listings/:public_key", Handler: updateListingHandler(svcCtx)},
	})
}

func writeError(w http.ResponseWriter, code int, message string) {
	httpx.WriteJson(w, code, errorResponse{Error: message})
}

func parsePublicKey(r *http.Request) (types.Pubkey, error) {
	return types.TryPubkeyFromBase58(pathvar.Vars(r)["public_key"])
}

// signatureMessageHandler 签发登录挑战消息。
func signatureMessageHandler(svcCtx *svc.GatewayServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePublicKey(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid public key")
			return
		}
		message, err := svcCtx.Challenges.Issue(r.Context(), key.String(), loginScope)
		if err != nil {
			logger.Errorf("[gateway] 签发登录挑战失败: key=%s err=%v", key, err)
			writeError(w, http.StatusInternalServerError, "failed to issue challenge")
			return
		}
		httpx.WriteJson(w, http.StatusOK, messageResponse{Message: message})
	}
}

// challengeHandler 签发针对具体操作的挑战，body 即 scope，格式 "<METHOD> <PATH>"。
func challengeHandler(svcCtx *svc.GatewayServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePublicKey(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid public key")
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		scope := strings.TrimSpace(string(body))
		if !validScope(scope) {
			writeError(w, http.StatusBadRequest, `scope must be "<METHOD> <PATH>"`)
			return
		}
		message, err := svcCtx.Challenges.Issue(r.Context(), key.String(), scope)
		if err != nil {
			logger.Errorf("[gateway] 签发挑战失败: key=%s scope=%q err=%v", key, scope, err)
			writeError(w, http.StatusInternalServerError, "failed to issue challenge")
			return
		}
		httpx.WriteJson(w, http.StatusOK, messageResponse{Message: message})
	}
}

func validScope(scope string) bool {
	method, path, ok := strings.Cut(scope, " ")
	if !ok {
		return false
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return false
	}
	return strings.HasPrefix(path, "/") && !strings.ContainsAny(path, " \t\r\n")
}

// getListingHandler 返回 listing 的元数据文档。
// 先确认链上 listing 存在，避免为任意地址提供存储读取。
func getListingHandler(svcCtx *svc.GatewayServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePublicKey(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid public key")
			return
		}
		if _, err := svcCtx.Chain.GetListing(r.Context(), key); err != nil {
			if errors.Is(err, rpcclient.ErrAccountNotFound) {
				writeError(w, http.StatusNotFound, "listing not found")
				return
			}
			logger.Errorf("[gateway] 读取链上 listing 失败: key=%s err=%v", key, err)
			writeError(w, http.StatusInternalServerError, "rpc failure")
			return
		}
		doc, err := svcCtx.Storage.Get(r.Context(), key.String())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "metadata not found")
				return
			}
			logger.Errorf("[gateway] 读取元数据失败: key=%s err=%v", key, err)
			writeError(w, http.StatusInternalServerError, "storage failure")
			return
		}
		httpx.WriteJson(w, http.StatusOK, doc)
	}
}

// updateListingHandler 写入 listing 的元数据文档。
// Authorization 头携带对挑战消息的 base58 签名。元数据的写权限跟随链上
// listing.authority：挑战必须是签发给当前 authority 的，验签也用 authority 公钥。
func updateListingHandler(svcCtx *svc.GatewayServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sigHeader := r.Header.Get("Authorization")
		if sigHeader == "" {
			writeError(w, http.StatusBadRequest, "missing Authorization header")
			return
		}
		signature, err := base58.Decode(sigHeader)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed signature")
			return
		}
		key, err := parsePublicKey(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid public key")
			return
		}

		listing, err := svcCtx.Chain.GetListing(r.Context(), key)
		if err != nil {
			if errors.Is(err, rpcclient.ErrAccountNotFound) {
				writeError(w, http.StatusNotFound, "listing not found")
				return
			}
			logger.Errorf("[gateway] 读取链上 listing 失败: key=%s err=%v", key, err)
			writeError(w, http.StatusInternalServerError, "rpc failure")
			return
		}

		// 挑战必须针对本次操作签发给当前 authority，且未被使用、未过期
		scope := http.MethodPost + " " + r.URL.Path
		message, found, err := svcCtx.Challenges.Take(r.Context(), listing.Authority.String(), scope)
		if err != nil {
			logger.Errorf("[gateway] 读取挑战失败: key=%s err=%v", key, err)
			writeError(w, http.StatusInternalServerError, "challenge store failure")
			return
		}
		if !found || !session.Verify(listing.Authority, message, signature) {
			writeError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}

		var doc storage.MetadataDocument
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&doc); err != nil {
			writeError(w, http.StatusBadRequest, "malformed document")
			return
		}
		if err := svcCtx.Storage.Put(r.Context(), key.String(), &doc); err != nil {
			logger.Errorf("[gateway] 写入元数据失败: key=%s err=%v", key, err)
			writeError(w, http.StatusInternalServerError, "storage failure")
			return
		}

		// 事件发布失败不回滚写入，只记录告警，下游可全量补偿
		if svcCtx.Publisher != nil {
			event := mq.ListingMetadataUpdated{
				Listing:   key.String(),
				Version:   doc.Version,
				UpdatedAt: time.Now().Unix(),
			}
			if err := svcCtx.Publisher.Publish(r.Context(), mq.EventTypeListingMetadataUpdated, event); err != nil {
				logger.Warnf("[gateway] 元数据事件发布失败: key=%s err=%v", key, err)
			}
		}

		httpx.WriteJson(w, http.StatusOK, doc)
	}
}
