package bptree

import (
	"mvtree/internal/mverr"
	"mvtree/internal/page"
)

// rebalanceLeaf handles an underflowed leaf: borrow from a sibling
// with surplus first, merge otherwise. Grounded on
// mini-db-engine's rebalanceLeafAfterDelete (try-right, try-left,
// merge-right, merge-left, in that order).
func (t *Tree) rebalanceLeaf(leaf *page.Node, path []page.ID) error {
	parent, err := t.store.Get(path[len(path)-1])
	if err != nil {
		return err
	}
	parent = parent.Clone()
	idx := childIndexByID(parent, leaf.ID)
	if idx < 0 {
		return mverr.Corrupted("bptree: leaf %d missing from parent %d", leaf.ID, parent.ID)
	}

	if idx < len(parent.Children)-1 {
		right, err := t.store.Get(parent.Children[idx+1].Child)
		if err != nil {
			return err
		}
		if len(right.Items) > t.codec.DLeaf {
			right = right.Clone()
			leaf.Items = append(leaf.Items, right.Items[0])
			right.Items = right.Items[1:]
			parent.Children[idx+1].Sep.Key = right.Items[0].Key
			if err := t.store.Update(leaf); err != nil {
				return err
			}
			if err := t.store.Update(right); err != nil {
				return err
			}
			return t.store.Update(parent)
		}
	}

	if idx > 0 {
		left, err := t.store.Get(parent.Children[idx-1].Child)
		if err != nil {
			return err
		}
		if len(left.Items) > t.codec.DLeaf {
			left = left.Clone()
			last := left.Items[len(left.Items)-1]
			left.Items = left.Items[:len(left.Items)-1]
			leaf.Items = append([]page.LeafEntry{last}, leaf.Items...)
			parent.Children[idx].Sep.Key = leaf.Items[0].Key
			if err := t.store.Update(leaf); err != nil {
				return err
			}
			if err := t.store.Update(left); err != nil {
				return err
			}
			return t.store.Update(parent)
		}
	}

	if idx < len(parent.Children)-1 {
		right, err := t.store.Get(parent.Children[idx+1].Child)
		if err != nil {
			return err
		}
		leaf.Items = append(leaf.Items, right.Items...)
		leaf.Next = right.Next
		if err := t.store.Update(leaf); err != nil {
			return err
		}
		if err := t.store.Remove(right.ID); err != nil {
			return err
		}
		parent.RemoveChildAt(idx + 1)
	} else {
		left, err := t.store.Get(parent.Children[idx-1].Child)
		if err != nil {
			return err
		}
		left = left.Clone()
		left.Items = append(left.Items, leaf.Items...)
		left.Next = leaf.Next
		if err := t.store.Update(left); err != nil {
			return err
		}
		if err := t.store.Remove(leaf.ID); err != nil {
			return err
		}
		parent.RemoveChildAt(idx)
	}

	return t.propagateUnderflow(parent, path[:len(path)-1])
}

// propagateUnderflow is rebalanceLeaf's inner-node analogue, called
// bottom-up after a merge shrinks a parent. At the root, a
// single-child root is collapsed (the tree shrinks by one level).
func (t *Tree) propagateUnderflow(node *page.Node, path []page.ID) error {
	if len(path) == 0 {
		if len(node.Children) == 1 {
			t.root = node.Children[0].Child
			return t.store.Remove(node.ID)
		}
		return t.store.Update(node)
	}
	if !t.codec.IsUnderflowInner(node) {
		return t.store.Update(node)
	}

	parent, err := t.store.Get(path[len(path)-1])
	if err != nil {
		return err
	}
	parent = parent.Clone()
	idx := childIndexByID(parent, node.ID)
	if idx < 0 {
		return mverr.Corrupted("bptree: inner node %d missing from parent %d", node.ID, parent.ID)
	}

	if idx < len(parent.Children)-1 {
		right, err := t.store.Get(parent.Children[idx+1].Child)
		if err != nil {
			return err
		}
		if len(right.Children) > t.codec.DInner {
			right = right.Clone()
			node.Children = append(node.Children, right.Children[0])
			right.Children = right.Children[1:]
			parent.Children[idx+1].Sep.Key = right.Children[0].Sep.Key
			if err := t.store.Update(node); err != nil {
				return err
			}
			if err := t.store.Update(right); err != nil {
				return err
			}
			return t.store.Update(parent)
		}
	}

	if idx > 0 {
		left, err := t.store.Get(parent.Children[idx-1].Child)
		if err != nil {
			return err
		}
		if len(left.Children) > t.codec.DInner {
			left = left.Clone()
			last := left.Children[len(left.Children)-1]
			left.Children = left.Children[:len(left.Children)-1]
			node.Children = append([]page.IndexEntry{last}, node.Children...)
			parent.Children[idx].Sep.Key = node.Children[0].Sep.Key
			if err := t.store.Update(node); err != nil {
				return err
			}
			if err := t.store.Update(left); err != nil {
				return err
			}
			return t.store.Update(parent)
		}
	}

	if idx < len(parent.Children)-1 {
		right, err := t.store.Get(parent.Children[idx+1].Child)
		if err != nil {
			return err
		}
		node.Children = append(node.Children, right.Children...)
		if err := t.store.Update(node); err != nil {
			return err
		}
		if err := t.store.Remove(right.ID); err != nil {
			return err
		}
		parent.RemoveChildAt(idx + 1)
	} else {
		left, err := t.store.Get(parent.Children[idx-1].Child)
		if err != nil {
			return err
		}
		left = left.Clone()
		left.Children = append(left.Children, node.Children...)
		if err := t.store.Update(left); err != nil {
			return err
		}
		if err := t.store.Remove(node.ID); err != nil {
			return err
		}
		parent.RemoveChildAt(idx)
	}

	return t.propagateUnderflow(parent, path[:len(path)-1])
}
