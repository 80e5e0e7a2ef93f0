// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the loaded chartbook catalog to LLMs via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/catalogservice"
)

// ManifestFormatURI is the resource URI of the manifest format contract.
const ManifestFormatURI = "chartbook://manifest-format"

const defaultSearchLimit = 20

// Server wraps the MCP server with chartbook tools.
type Server struct {
	mcp *server.MCPServer
	svc *catalogservice.Service
}

// New creates a new MCP server with all chartbook tools registered.
func New(svc *catalogservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Chartbook",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_pipelines",
		mcp.WithDescription("List the pipelines of the loaded catalog with their dataframe and chart counts."),
	), s.listPipelines)

	s.mcp.AddTool(mcp.NewTool("get_pipeline",
		mcp.WithDescription("Return the fully resolved manifest of one pipeline."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id as listed by list_pipelines")),
	), s.getPipeline)

	s.mcp.AddTool(mcp.NewTool("get_dataframe",
		mcp.WithDescription("Return a dataframe with its documentation and the charts built from it."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithString("dataframe_id", mcp.Required(), mcp.Description("Dataframe id within the pipeline")),
	), s.getDataframe)

	s.mcp.AddTool(mcp.NewTool("get_chart",
		mcp.WithDescription("Return a chart with its documentation and source dataframe."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithString("chart_id", mcp.Required(), mcp.Description("Chart id within the pipeline")),
	), s.getChart)

	s.mcp.AddTool(mcp.NewTool("search_catalog",
		mcp.WithDescription("Full-text search over dataframes, charts and notes of every pipeline."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchCatalog)

	s.mcp.AddTool(mcp.NewTool("entries_by_tag",
		mcp.WithDescription("List dataframes, charts and notes carrying a topic tag (case-insensitive)."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Topic tag")),
	), s.entriesByTag)

	s.mcp.AddTool(mcp.NewTool("get_manifest_contract",
		mcp.WithDescription("Returns the chartbook.toml format contract. "+
			"Call this before authoring or editing a manifest."),
	), s.getManifestContract)

	s.mcp.AddResource(
		mcp.NewResource(ManifestFormatURI, "Manifest Format Contract",
			mcp.WithResourceDescription("Format of chartbook.toml pipeline and catalog manifests."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readManifestFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listPipelines(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.Pipelines(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(items)
}

func (s *Server) getPipeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("pipeline_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Pipeline(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(p)
}

func (s *Server) getDataframe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := req.RequireString("pipeline_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("dataframe_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	df, err := s.svc.Dataframe(ctx, pid, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(df)
}

func (s *Server) getChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := req.RequireString("pipeline_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("chart_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.Chart(ctx, pid, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(c)
}

func (s *Server) searchCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	results, err := s.svc.Search(ctx, query, limit)
	if err != nil {
		return toolError(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results found"), nil
	}
	return jsonResult(results)
}

func (s *Server) entriesByTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.svc.EntriesByTag(ctx, tag)
	if err != nil {
		return toolError(err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no entries found"), nil
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
}

func (s *Server) getManifestContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ManifestFormatContract), nil
}

func (s *Server) readManifestFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ManifestFormatURI,
			MIMEType: "text/markdown",
			Text:     ManifestFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err))
	case errors.Is(err, catalogservice.ErrNotLoaded):
		return mcp.NewToolResultError("catalog not loaded: " + err.Error())
	}
	return mcp.NewToolResultError(apperr.Format(err))
}
