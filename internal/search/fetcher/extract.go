package fetcher

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	blankLines   = regexp.MustCompile(`\n\s*\n`)
	multiSpaces  = regexp.MustCompile(` +`)
	disallowChar = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-'"()]`)
)

// 抽取正文前整棵删除的元素。
var noiseTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
}

// 块级元素前后插入换行。
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Section: true, atom.Article: true, atom.Main: true,
}

// Extracted 页面抽取结果。
type Extracted struct {
	Title   string
	Content string
}

// ExtractContent 抽取页面主体文本。
// 依次选择 article、main、role=main 元素，均不存在时使用 body。
// 文本超过 maxLen 个字符时截断并追加 "..."。
func ExtractContent(root *html.Node, maxLen int) Extracted {
	title := textOf(findFirst(root, byTag(atom.Title)))

	removeAll(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && noiseTags[n.DataAtom]
	})

	var main *html.Node
	for _, m := range []matcher{byTag(atom.Article), byTag(atom.Main), byAttr("role", "main"), byTag(atom.Body)} {
		if main = findFirst(root, m); main != nil {
			break
		}
	}
	if main == nil {
		return Extracted{Title: title}
	}

	text := CleanText(renderText(main))
	return Extracted{Title: title, Content: Truncate(text, maxLen)}
}

// renderText 输出纯文本，块级元素之间以换行分隔。
func renderText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			b.WriteString(strings.ReplaceAll(cur.Data, "\n", " "))
			return
		case html.ElementNode:
			if blockTags[cur.DataAtom] {
				b.WriteString("\n\n")
				defer b.WriteString("\n\n")
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// CleanText 折叠空行与空格，去除标点白名单以外的符号。
func CleanText(text string) string {
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = multiSpaces.ReplaceAllString(text, " ")
	text = disallowChar.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Truncate 按字符截断，截断时追加 "..."。
func Truncate(text string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	return string([]rune(text)[:maxLen]) + "..."
}
