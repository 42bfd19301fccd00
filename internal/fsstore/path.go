package fsstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Objects are sharded below their bucket directory by two two-character
// segments cut from a fixed offset of the object id. For UUID-shaped ids
// the offset lands inside the final hex group, so ids minted close together
// in time still spread across leaf directories. The offsets are fixed;
// changing them would silently orphan every stored object.
const (
	shardOffset = 24
	shardWidth  = 2
	minIDLen    = shardOffset + 2*shardWidth
)

// ShardedPath is the resolved on-disk location of one object:
// root/bucket/seg1/seg2/object.
type ShardedPath struct {
	Root     string
	Segments [3]string // bucket dir, shard 1, shard 2
	Basename string
}

// Dir returns the leaf directory that holds the object.
func (p ShardedPath) Dir() string {
	return filepath.Join(p.Root, p.Segments[0], p.Segments[1], p.Segments[2])
}

// Full returns the canonical path of the object file.
func (p ShardedPath) Full() string {
	return filepath.Join(p.Dir(), p.Basename)
}

// ValidateIdentifier rejects ids that are empty or could escape the storage
// tree. No filesystem access happens here or in ComputePath.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if strings.ContainsAny(id, `/\.`) {
		return fmt.Errorf("%w: %q contains a path character", ErrInvalidIdentifier, id)
	}
	return nil
}

// ComputePath maps (bucket, object) to its sharded location. Pure and
// deterministic: equal inputs always produce equal paths.
func ComputePath(root, bucketID, objectID string) (ShardedPath, error) {
	if err := ValidateIdentifier(bucketID); err != nil {
		return ShardedPath{}, fmt.Errorf("bucket: %w", err)
	}
	if err := ValidateIdentifier(objectID); err != nil {
		return ShardedPath{}, fmt.Errorf("object: %w", err)
	}
	if len(objectID) < minIDLen {
		return ShardedPath{}, fmt.Errorf("%w: object id %q too short for sharding", ErrInvalidIdentifier, objectID)
	}
	return ShardedPath{
		Root: root,
		Segments: [3]string{
			bucketID,
			objectID[shardOffset : shardOffset+shardWidth],
			objectID[shardOffset+shardWidth : shardOffset+2*shardWidth],
		},
		Basename: objectID,
	}, nil
}
