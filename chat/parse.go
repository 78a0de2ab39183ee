package chat

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// NodeKind classifies a span of message content.
type NodeKind int

const (
	NodeText NodeKind = iota
	NodeLink
	NodeMention
	NodeCheer
	NodeEmote
)

// Node is one parsed span of a user message.
type Node struct {
	Kind  NodeKind
	Text  string
	URL   string
	Login string
	Bits  int
	Emote *Emote
}

var (
	cheerPattern   = regexp.MustCompile(`^([A-Za-z]+)(\d+)$`)
	linkPattern    = regexp.MustCompile(`(?i)^(https?://)?([a-z0-9-]+\.)+[a-z]{2,}(/\S*)?$`)
	mentionPattern = regexp.MustCompile(`^@(\w+)`)
)

func parseNodes(text string, ranges []EmoteRange, lookup EmoteLookup, bits int) []Node {
	runes := []rune(text)
	byStart := make(map[int]EmoteRange, len(ranges))
	for _, r := range ranges {
		byStart[r.Span.Start] = r
	}

	nodes := make([]Node, 0, 8)
	appendText := func(s string) {
		if n := len(nodes); n > 0 && nodes[n-1].Kind == NodeText {
			nodes[n-1].Text += s
			return
		}
		nodes = append(nodes, Node{Kind: NodeText, Text: s})
	}

	for i := 0; i < len(runes); {
		if unicode.IsSpace(runes[i]) {
			appendText(string(runes[i]))
			i++
			continue
		}
		end := i
		for end < len(runes) && !unicode.IsSpace(runes[end]) {
			end++
		}
		if r, ok := byStart[i]; ok && r.Span.End > i && r.Span.End <= len(runes) {
			name := string(runes[i:r.Span.End])
			nodes = append(nodes, Node{Kind: NodeEmote, Text: name, Emote: &Emote{ID: r.ID, Name: name, Provider: ProviderTwitch}})
			i = r.Span.End
			continue
		}
		word := string(runes[i:end])
		if node, ok := classify(word, lookup, bits); ok {
			nodes = append(nodes, node)
		} else {
			appendText(word)
		}
		i = end
	}
	return nodes
}

func classify(word string, lookup EmoteLookup, bits int) (Node, bool) {
	if bits > 0 {
		if m := cheerPattern.FindStringSubmatch(word); m != nil {
			if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
				return Node{Kind: NodeCheer, Text: word, Bits: n}, true
			}
		}
	}
	if lookup != nil {
		if e, ok := lookup.Emote(word); ok {
			return Node{Kind: NodeEmote, Text: word, Emote: &e}, true
		}
	}
	if m := mentionPattern.FindStringSubmatch(word); m != nil {
		return Node{Kind: NodeMention, Text: word, Login: strings.ToLower(m[1])}, true
	}
	if linkPattern.MatchString(word) {
		url := word
		if !strings.HasPrefix(strings.ToLower(url), "http") {
			url = "https://" + url
		}
		return Node{Kind: NodeLink, Text: word, URL: url}, true
	}
	return Node{}, false
}
