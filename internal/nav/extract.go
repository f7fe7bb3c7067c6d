//go:build cgo

package nav

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Available reports whether tree-sitter extraction is compiled in.
func Available() bool {
	return true
}

// extractSource parses Go source and returns its top-level declarations.
func extractSource(ctx context.Context, path string, source []byte) ([]Declaration, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	root := tree.RootNode()

	var decls []Declaration
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "function_declaration":
			if d := funcDecl(node, source, path, ""); d != nil {
				decls = append(decls, *d)
			}
		case "method_declaration":
			if d := funcDecl(node, source, path, receiverType(node, source)); d != nil {
				decls = append(decls, *d)
			}
		case "type_declaration":
			decls = append(decls, typeDecls(node, source, path)...)
		case "const_declaration":
			decls = append(decls, valueDecls(node, source, path, "const")...)
		case "var_declaration":
			decls = append(decls, valueDecls(node, source, path, "var")...)
		}
	}
	return decls, nil
}

func funcDecl(node *sitter.Node, source []byte, path, receiver string) *Declaration {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	kind := "func"
	if receiver != "" {
		kind = "method"
	}
	return &Declaration{
		Name:      nameNode.Content(source),
		Kind:      kind,
		Path:      path,
		Line:      int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Receiver:  receiver,
		Signature: signature(node, source),
	}
}

// receiverType returns the bare receiver type name of a method declaration,
// without pointer or type-parameter decoration.
func receiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	param := recv.NamedChild(0)
	typeNode := param.ChildByFieldName("type")
	if typeNode == nil {
		return ""
	}

	name := typeNode.Content(source)
	name = strings.TrimPrefix(name, "*")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func typeDecls(node *sitter.Node, source []byte, path string) []Declaration {
	var decls []Declaration
	for i := 0; i < int(node.NamedChildCount()); i++ {
		spec := node.NamedChild(i)
		if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}

		kind := "type"
		if typeNode := spec.ChildByFieldName("type"); typeNode != nil {
			switch typeNode.Type() {
			case "struct_type":
				kind = "struct"
			case "interface_type":
				kind = "interface"
			}
		}

		decls = append(decls, Declaration{
			Name:      nameNode.Content(source),
			Kind:      kind,
			Path:      path,
			Line:      int(spec.StartPoint().Row) + 1,
			EndLine:   int(spec.EndPoint().Row) + 1,
			Signature: signature(spec, source),
		})
	}
	return decls
}

// valueDecls extracts const and var names. A single spec can declare
// several names, so every child in a name field position counts.
func valueDecls(node *sitter.Node, source []byte, path, kind string) []Declaration {
	var decls []Declaration
	for i := 0; i < int(node.NamedChildCount()); i++ {
		spec := node.NamedChild(i)
		if spec.Type() != "const_spec" && spec.Type() != "var_spec" {
			continue
		}
		for j := 0; j < int(spec.ChildCount()); j++ {
			if spec.FieldNameForChild(j) != "name" {
				continue
			}
			nameNode := spec.Child(j)
			decls = append(decls, Declaration{
				Name:      nameNode.Content(source),
				Kind:      kind,
				Path:      path,
				Line:      int(spec.StartPoint().Row) + 1,
				EndLine:   int(spec.EndPoint().Row) + 1,
				Signature: signature(spec, source),
			})
		}
	}
	return decls
}

// signature is the declaration's first line up to its body.
func signature(node *sitter.Node, source []byte) string {
	text := node.Content(source)
	if i := strings.IndexByte(text, '{'); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
