package menu

import "sort"

// sortItems orders items by order ascending, ties broken by id
// ascending. Every tree the package produces derives its ordering from
// this sort, so repeated calls over unchanged data are byte-identical.
func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].ID < items[j].ID
	})
}

// dedupeItems collapses items sharing a (title, href) pair, keeping the
// first encountered in sorted order. This guards against the same entry
// being attached to several roles the user holds.
func dedupeItems(items []Item) []Item {
	type key struct {
		title string
		href  string
	}
	seen := make(map[key]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		k := key{title: item.Title, href: item.Href}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// buildTree assembles the node tree from a flat item set. Top-level
// items are those without a parent; children attach recursively in
// (order, id) order. Items whose parent is absent from the set are
// dropped, and a visited guard stops traversal on a cyclic parent chain
// rather than recursing forever.
func buildTree(items []Item) []Node {
	childrenByParent := make(map[int64][]Item)
	var top []Item
	for _, item := range items {
		if item.ParentID == nil {
			top = append(top, item)
			continue
		}
		childrenByParent[*item.ParentID] = append(childrenByParent[*item.ParentID], item)
	}

	visited := make(map[int64]struct{}, len(items))
	var attach func(parent Item) []Node
	attach = func(parent Item) []Node {
		children := childrenByParent[parent.ID]
		if len(children) == 0 {
			return nil
		}
		sortItems(children)
		children = dedupeItems(children)
		nodes := make([]Node, 0, len(children))
		for _, child := range children {
			if _, ok := visited[child.ID]; ok {
				continue
			}
			visited[child.ID] = struct{}{}
			nodes = append(nodes, Node{
				Title:    child.Title,
				Href:     child.Href,
				Icon:     child.Icon,
				Children: attach(child),
			})
		}
		return nodes
	}

	sortItems(top)
	top = dedupeItems(top)
	nodes := make([]Node, 0, len(top))
	for _, item := range top {
		visited[item.ID] = struct{}{}
		nodes = append(nodes, Node{
			Title:    item.Title,
			Href:     item.Href,
			Icon:     item.Icon,
			Children: attach(item),
		})
	}
	return nodes
}

// descendantIDs collects the ids of every descendant of the given item,
// walking parent links breadth-first with a visited guard so a corrupt
// cyclic chain cannot loop the traversal.
func descendantIDs(all []Item, rootID int64) []int64 {
	childrenByParent := make(map[int64][]int64)
	for _, item := range all {
		if item.ParentID != nil {
			childrenByParent[*item.ParentID] = append(childrenByParent[*item.ParentID], item.ID)
		}
	}

	visited := map[int64]struct{}{rootID: {}}
	queue := []int64{rootID}
	var out []int64
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, childID := range childrenByParent[id] {
			if _, ok := visited[childID]; ok {
				continue
			}
			visited[childID] = struct{}{}
			out = append(out, childID)
			queue = append(queue, childID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// wouldCycle reports whether re-parenting item under newParentID would
// create a cycle: the new parent must not be the item itself or any of
// its descendants.
func wouldCycle(all []Item, itemID, newParentID int64) bool {
	if itemID == newParentID {
		return true
	}
	for _, id := range descendantIDs(all, itemID) {
		if id == newParentID {
			return true
		}
	}
	return false
}
