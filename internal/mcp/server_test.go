package mcp

import (
	"context"
	"encoding/base64"
	"testing"
	"testing/fstest"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zot/vega/internal/assets"
	"github.com/zot/vega/internal/config"
	"github.com/zot/vega/internal/lua"
	"github.com/zot/vega/internal/platform"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := assets.NewFSStore(fstest.MapFS{
		"main.lua":          {Data: []byte(`return "main"`)},
		"vega_lua/util.lua": {Data: []byte(`return {answer = 42, list = {"a", "b"}}`)},
		"vega_lua/bad.lua":  {Data: []byte(`error("nope")`)},
		"image.bin":         {Data: []byte{0xff, 0xfe, 0x00}},
	})
	cfg := config.DefaultConfig()
	cfg.Logging.Verbosity = -1
	pctx := platform.NewContext()
	require.NoError(t, pctx.SetAssets(store))
	rt, err := lua.NewRuntime(cfg, pctx)
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return NewServer("vega-test", "0.0.0", store, rt, cfg)
}

func callReq(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestSearchModule(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleSearchModule(ctx, callReq(map[string]any{"name": "util"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "vega_lua/util.lua", resultText(t, res))

	res, err = s.handleSearchModule(ctx, callReq(map[string]any{"name": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found in assets")

	res, err = s.handleSearchModule(ctx, callReq(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListAssets(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleListAssets(ctx, callReq(map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "image.bin\nmain.lua\nvega_lua", resultText(t, res))

	res, err = s.handleListAssets(ctx, callReq(map[string]any{"dir": "vega_lua"}))
	require.NoError(t, err)
	assert.Equal(t, "bad.lua\nutil.lua", resultText(t, res))

	res, err = s.handleListAssets(ctx, callReq(map[string]any{"dir": "nowhere"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestReadAsset(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleReadAsset(ctx, callReq(map[string]any{"path": "main.lua"}))
	require.NoError(t, err)
	assert.Equal(t, `return "main"`, resultText(t, res))

	res, err = s.handleReadAsset(ctx, callReq(map[string]any{"path": "gone.lua"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")

	res, err = s.handleReadAsset(ctx, callReq(map[string]any{"path": "image.bin"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not text")
}

func TestRequireModule(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRequireModule(ctx, callReq(map[string]any{"name": "util"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"answer": 42, "list": ["a", "b"]}`, resultText(t, res))

	res, err = s.handleRequireModule(ctx, callReq(map[string]any{"name": "bad"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "nope")
}

func TestReadAssetResource(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	var req mcp.ReadResourceRequest
	req.Params.URI = "asset://vega_lua/util.lua"
	contents, err := s.handleReadAssetResource(ctx, req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "text/x-lua", text.MIMEType)
	assert.Contains(t, text.Text, "answer = 42")

	req.Params.URI = "asset://image.bin"
	contents, err = s.handleReadAssetResource(ctx, req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	blob, ok := contents[0].(mcp.BlobResourceContents)
	require.True(t, ok, "binary assets come back as a blob, got %T", contents[0])
	assert.Equal(t, "application/octet-stream", blob.MIMEType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0x00}), blob.Blob)

	req.Params.URI = "file:///etc/passwd"
	_, err = s.handleReadAssetResource(ctx, req)
	assert.Error(t, err)

	req.Params.URI = "asset://missing.lua"
	_, err = s.handleReadAssetResource(ctx, req)
	assert.Error(t, err)
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "text/x-lua", mimeType("a/b.lua"))
	assert.Equal(t, "text/x-lua", mimeType("b.lc"))
	assert.Equal(t, "application/json", mimeType("x.json"))
	assert.Equal(t, "text/plain", mimeType("README"))
}
