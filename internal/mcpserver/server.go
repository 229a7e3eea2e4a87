// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the data library to LLM clients via stdio transport.
// All tools act on behalf of one configured user.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/datalib/internal/auth"
	"github.com/starford/datalib/internal/dataservice"
	"github.com/starford/datalib/internal/library"
	"github.com/starford/datalib/internal/models"
)

// Server wraps the MCP server with the data library tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *dataservice.Service
	userID string
}

// New creates a new MCP server with all tools registered. userID is the
// identity every tool call runs as.
func New(svc *dataservice.Service, userID string) *Server {
	s := &Server{svc: svc, userID: userID}

	s.mcp = server.NewMCPServer(
		"Datalib",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	typeEnum := mcp.Enum(string(models.TypeContext), string(models.TypeIssue), string(models.TypeInquiry), string(models.TypeProduct))

	s.mcp.AddTool(mcp.NewTool("list_data",
		mcp.WithDescription("List your data items, newest first unless sorted otherwise. "+
			"Search matches title, description and content case-insensitively."),
		mcp.WithString("type", mcp.Description("Item type, defaults to context"), typeEnum),
		mcp.WithString("search", mcp.Description("Search term")),
		mcp.WithString("sort", mcp.Description("Ordering"), mcp.Enum("newest", "oldest", "title", "updated")),
	), s.listData)

	s.mcp.AddTool(mcp.NewTool("get_data",
		mcp.WithDescription("Read one data item including its full content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.getData)

	s.mcp.AddTool(mcp.NewTool("create_data",
		mcp.WithDescription("Create a data item. Read the "+DataTypesURI+" resource or call "+
			"get_data_types first to pick the right type."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Item type"), typeEnum),
		mcp.WithString("description", mcp.Description("Short summary")),
		mcp.WithString("content", mcp.Description("Full text, Markdown allowed")),
		mcp.WithArray("tags", mcp.Description("Labels"), mcp.WithStringItems()),
		mcp.WithString("project_id", mcp.Description("Project id; defaults to your first project")),
	), s.createData)

	s.mcp.AddTool(mcp.NewTool("update_data",
		mcp.WithDescription("Change fields of a data item. Omitted fields are kept; "+
			"an empty string clears a text field."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("type", mcp.Description("New type"), typeEnum),
		mcp.WithString("description", mcp.Description("New summary")),
		mcp.WithString("content", mcp.Description("New full text")),
		mcp.WithArray("tags", mcp.Description("Replacement labels"), mcp.WithStringItems()),
		mcp.WithString("project_id", mcp.Description("Move to another project")),
	), s.updateData)

	s.mcp.AddTool(mcp.NewTool("delete_data",
		mcp.WithDescription("Delete a data item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.deleteData)

	s.mcp.AddTool(mcp.NewTool("refresh_data",
		mcp.WithDescription("Reload your data items from the database."),
	), s.refreshData)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List your projects, newest first."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("list_project_data",
		mcp.WithDescription("List the data items of one project, optionally of one type."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("type", mcp.Description("Restrict to one type"), typeEnum),
	), s.listProjectData)

	s.mcp.AddTool(mcp.NewTool("attach_file",
		mcp.WithDescription("Store a file from an http(s) URL or a base64 data URI and, "+
			"when id is given, attach it to that data item."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("File name to store under")),
		mcp.WithString("id", mcp.Description("Data item to attach the file to")),
	), s.attachFile)

	s.mcp.AddTool(mcp.NewTool("get_data_types",
		mcp.WithDescription("Describe the data item types and fields."),
	), s.getDataTypes)

	s.mcp.AddResource(
		mcp.NewResource(DataTypesURI, "Data Item Format",
			mcp.WithResourceDescription("Data item types and the rules for writing items."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDataTypesResource,
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

func (s *Server) ctx(ctx context.Context) context.Context {
	return auth.WithUser(ctx, s.userID)
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sortBy, err := library.ParseSort(req.GetString("sort", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := library.FilterState{
		Type:   models.DataType(strings.ToLower(strings.TrimSpace(req.GetString("type", "")))),
		Search: req.GetString("search", ""),
		SortBy: sortBy,
	}
	res, err := s.svc.List(s.ctx(ctx), f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.Get(s.ctx(ctx), id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(item), nil
}

func (s *Server) createData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.Create(s.ctx(ctx), dataservice.CreateInput{
		Title:       title,
		Type:        models.DataType(typ),
		Description: req.GetString("description", ""),
		Content:     req.GetString("content", ""),
		Tags:        req.GetStringSlice("tags", nil),
		ProjectID:   req.GetString("project_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item), nil
}

func (s *Server) updateData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	str := func(key string) *string {
		if _, ok := args[key]; !ok {
			return nil
		}
		v := req.GetString(key, "")
		return &v
	}

	var u models.DataUpdate
	u.Title = str("title")
	u.Description = str("description")
	u.Content = str("content")
	u.ProjectID = str("project_id")
	if t := str("type"); t != nil {
		typ := models.DataType(*t)
		u.Type = &typ
	}
	if _, ok := args["tags"]; ok {
		tags := req.GetStringSlice("tags", []string{})
		u.Tags = &tags
	}

	item, err := s.svc.Update(s.ctx(ctx), id, u)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item), nil
}

func (s *Server) deleteData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(s.ctx(ctx), id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) refreshData(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.svc.Refresh(s.ctx(ctx))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("refreshed: %d items", n)), nil
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.svc.Projects(s.ctx(ctx))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(projects), nil
}

func (s *Server) listProjectData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.ListProjectData(s.ctx(ctx), projectID, req.GetString("type", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items), nil
}

type attachResult struct {
	FileName      string           `json:"file_name"`
	FileSize      int64            `json:"file_size"`
	FileURL       string           `json:"file_url"`
	MarkdownImage string           `json:"markdown_image"`
	Item          *models.DataItem `json:"item,omitempty"`
}

func (s *Server) attachFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obj, item, err := s.svc.Attach(s.ctx(ctx), req.GetString("id", ""), rawURL, req.GetString("filename", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(attachResult{
		FileName:      obj.Name,
		FileSize:      obj.Size,
		FileURL:       obj.URL,
		MarkdownImage: fmt.Sprintf("![%s](%s)", obj.Name, obj.URL),
		Item:          item,
	}), nil
}

func (s *Server) getDataTypes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DataTypesGuide()), nil
}

func (s *Server) readDataTypesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DataTypesURI,
			MIMEType: "text/markdown",
			Text:     DataTypesGuide(),
		},
	}, nil
}
