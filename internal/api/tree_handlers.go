package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsync/shelfsync-server/internal/dto"
	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
	"github.com/shelfsync/shelfsync-server/internal/tree"
)

func (s *Server) registerTreeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getTree",
		Method:      http.MethodGet,
		Path:        "/api/v1/tree/{root}",
		Summary:     "Get view",
		Description: "Returns one root category of the incremental views. " +
			"For the found category a pattern runs a new search.",
		Tags: []string{"Views"},
	}, s.handleGetTree)
}

// TreeInput selects a root category.
type TreeInput struct {
	Root    string `path:"root" enum:"found,favorites,recent,byAuthor,byTitle,bySeries,byTag,fileTree" doc:"Root category"`
	Pattern string `query:"pattern" doc:"Search pattern for the found category"`
}

// TreeNode is one node of a view.
type TreeNode struct {
	Kind     tree.Kind  `json:"kind"`
	ID       string     `json:"id,omitempty"`
	Name     string     `json:"name"`
	Book     *dto.Book  `json:"book,omitempty"`
	Children []TreeNode `json:"children,omitempty"`
}

// TreeOutput wraps a view for Huma.
type TreeOutput struct {
	Body TreeNode
}

func (s *Server) handleGetTree(ctx context.Context, input *TreeInput) (*TreeOutput, error) {
	if s.services.Trees == nil {
		return nil, toAPIError(domainerrors.NotFound("views are not available"))
	}

	if input.Root == tree.RootFound && strings.TrimSpace(input.Pattern) != "" {
		return &TreeOutput{Body: toTreeNode(s.services.Trees.Search(ctx, input.Pattern))}, nil
	}

	view, ok := s.services.Trees.View(ctx, input.Root)
	if !ok {
		return nil, toAPIError(domainerrors.NotFoundf("unknown view %q", input.Root))
	}
	return &TreeOutput{Body: toTreeNode(view)}, nil
}

func toTreeNode(v tree.View) TreeNode {
	n := TreeNode{Kind: v.Kind, ID: v.ID, Name: v.Name, Book: dto.FromBook(v.Book)}
	if len(v.Children) > 0 {
		n.Children = make([]TreeNode, 0, len(v.Children))
		for _, c := range v.Children {
			n.Children = append(n.Children, toTreeNode(c))
		}
	}
	return n
}
