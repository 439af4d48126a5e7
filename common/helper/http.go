package helper

import (
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

// 默认超时配置常量
const (
	DefaultTimeout = 5 * time.Second
	FastTimeout    = 3 * time.Second
)

// NewHTTPClient 创建支持连接复用的 fasthttp 客户端，由调用方持有（不使用全局单例）
func NewHTTPClient(timeout time.Duration, maxConnsPerHost int) *fasthttp.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = 50
	}
	return &fasthttp.Client{
		ReadTimeout:                   timeout,
		WriteTimeout:                  timeout,
		MaxIdleConnDuration:           90 * time.Second, // 连接空闲时间
		MaxConnsPerHost:               maxConnsPerHost,  // 每个主机最大连接数
		MaxConnWaitTimeout:            3 * time.Second,  // 等待连接超时
		DisableHeaderNamesNormalizing: true,
	}
}

// HttpDoTimeout 发起一次 HTTP 请求并返回响应体与状态码
func HttpDoTimeout(client *fasthttp.Client, requestBody []byte, method string, requestURI string, headers map[string]string, timeout time.Duration) ([]byte, int, error) {

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	defer func() {
		fasthttp.ReleaseResponse(resp)
		fasthttp.ReleaseRequest(req)
	}()

	req.SetRequestURI(requestURI)
	req.Header.SetMethod(method)

	switch method {
	case fasthttp.MethodPost, fasthttp.MethodPut:
		req.Header.SetContentType("application/json")
		req.SetBody(requestBody)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	err := client.DoTimeout(req, resp, timeout)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	// resp 归还池之前复制响应体
	respBytes := append([]byte(nil), resp.Body()...)
	return respBytes, resp.StatusCode(), nil
}
