// Package rdelta implements the generic reconstruction graph shared by
// every delta-compressed table in the store: given an identifier whose
// content is recorded either as a full blob or as a delta against some
// base identifier, walk backward to a full blob and replay forward to
// rebuild the requested content.
//
// Grounded on garland/tree.go's recursive descent to a leaf
// (findLeafByByteInternal, a backward walk through a static tree
// structure to a base case), generalized here from "descend a static
// tree" to "walk a delta-chain graph backward then apply forward", and
// cross-grounded on ethereum-go-ethereum's triedb/pathdb layer-chain walk
// (other_examples/diffToDisk, layertree.go) for the "bounded-depth chain
// with a full base at the bottom" shape.
package rdelta

import (
	"github.com/dscherger/monotone-sub002/errs"
)

// Store is implemented by any delta-chained table: it can say whether an
// id is stored as a full blob, or (if not) what its base id and the
// forward delta bytes from base to id are.
type Store[ID comparable] interface {
	IsBase(id ID) (bool, error)
	GetNext(id ID) (base ID, delta []byte, ok bool, err error)
	LoadBase(id ID) ([]byte, error)
}

// Applier applies a delta recorded by the store to reconstruct the next
// blob in the chain.
type Applier func(base []byte, delta []byte) ([]byte, error)

// Cache is a version cache of already-reconstructed blobs, checked before
// walking the chain and updated with every intermediate result.
type Cache[ID comparable] interface {
	Get(id ID) ([]byte, bool)
	Put(id ID, blob []byte)
}

// Reconstruct rebuilds the blob for id: if id is itself a full blob (or
// present in cache), it is returned directly; otherwise the reconstruction
// path is found by walking base-of edges back to a full blob, then each
// delta along that path is applied forward, with every intermediate
// result recorded in cache.
func Reconstruct[ID comparable](store Store[ID], cache Cache[ID], apply Applier, id ID) ([]byte, error) {
	if cache != nil {
		if blob, ok := cache.Get(id); ok {
			return blob, nil
		}
	}

	var path []step[ID]
	cur := id
	for {
		if cache != nil {
			if blob, ok := cache.Get(cur); ok {
				return replay(apply, blob, path, cache)
			}
		}
		isBase, err := store.IsBase(cur)
		if err != nil {
			return nil, err
		}
		if isBase {
			base, err := store.LoadBase(cur)
			if err != nil {
				return nil, err
			}
			return replay(apply, base, path, cache)
		}
		base, delta, ok, err := store.GetNext(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.New(errs.Database, "rdelta: broken chain, no base and no delta recorded")
		}
		path = append(path, step[ID]{id: cur, delta: delta})
		cur = base
	}
}

// step is one link of a reconstruction path: the id it rebuilds and the
// delta that rebuilds it from the previous link's blob.
type step[ID comparable] struct {
	id    ID
	delta []byte
}

func replay[ID comparable](apply Applier, base []byte, path []step[ID], cache Cache[ID]) ([]byte, error) {
	blob := base
	for i := len(path) - 1; i >= 0; i-- {
		next, err := apply(blob, path[i].delta)
		if err != nil {
			return nil, errs.Wrap(errs.Database, "rdelta: applying delta in reconstruction chain", err)
		}
		blob = next
		if cache != nil {
			cache.Put(path[i].id, blob)
		}
	}
	return blob, nil
}
