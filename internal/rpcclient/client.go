package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/client"

	"settlement-sol/internal/program/state"
	"settlement-sol/internal/types"
)

// 链上读路径：按地址拉取账户字节并解码为结算记录。
// 只信任程序所有权与记录编码本身，不信任调用方传入的任何元信息。

var ErrAccountNotFound = errors.New("rpcclient: account not found")

// Reader 是网关需要的链上读能力，测试中用桩实现。
type Reader interface {
	GetListing(ctx context.Context, key types.Pubkey) (*state.Listing, error)
	GetCharter(ctx context.Context, key types.Pubkey) (*state.Charter, error)
}

type Client struct {
	rpc       *client.Client
	programID types.Pubkey
	timeout   time.Duration
}

func NewClient(endpoint string, programID types.Pubkey, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		rpc:       client.NewClient(endpoint),
		programID: programID,
		timeout:   timeout,
	}
}

// fetchAccount 拉取账户数据并校验程序所有权。
// 不存在的账户与不归属结算程序的账户同样返回 ErrAccountNotFound，
// 避免把任意账户字节喂给解码器。
func (c *Client) fetchAccount(ctx context.Context, key types.Pubkey) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := c.rpc.GetAccountInfo(ctx, key.String())
	if err != nil {
		return nil, fmt.Errorf("GetAccountInfo %s: %w", key, err)
	}
	if len(info.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	if owner := types.Pubkey(info.Owner); owner != c.programID {
		return nil, fmt.Errorf("%w: %s is not owned by the settlement program", ErrAccountNotFound, key)
	}
	return info.Data, nil
}

func (c *Client) GetListing(ctx context.Context, key types.Pubkey) (*state.Listing, error) {
	data, err := c.fetchAccount(ctx, key)
	if err != nil {
		return nil, err
	}
	listing, err := state.UnpackListing(data)
	if err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", key, err)
	}
	return listing, nil
}

func (c *Client) GetCharter(ctx context.Context, key types.Pubkey) (*state.Charter, error) {
	data, err := c.fetchAccount(ctx, key)
	if err != nil {
		return nil, err
	}
	charter, err := state.UnpackCharter(data)
	if err != nil {
		return nil, fmt.Errorf("decode charter %s: %w", key, err)
	}
	return charter, nil
}
