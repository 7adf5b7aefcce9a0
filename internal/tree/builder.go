// Package tree assembles a disk's nested volume tree from the flat object
// snapshot delivered by the storage service.
//
// Each block object is classified exactly once, by capability precedence:
// encrypted container, then LVM physical volume, then filesystem, then
// generic block. A block exposing several capabilities gets the most
// specific interpretation. The resulting tree is an immutable snapshot;
// refreshes replace it wholesale and never mutate it in place.
//
// The builder never fails: objects that vanish between enumeration steps or
// reference something no longer present become nodes marked unresolved, so
// one broken child cannot take down the rest of the tree.
package tree

import (
	"sort"

	"github.com/jbweber/blockyard/internal/model"
	"github.com/jbweber/blockyard/internal/udisks"
)

// index provides the lookups the builder needs over one object snapshot.
type index struct {
	byPath   map[string]udisks.Object
	byDevice map[string]udisks.Object
}

func newIndex(objects []udisks.Object) *index {
	ix := &index{
		byPath:   make(map[string]udisks.Object, len(objects)),
		byDevice: make(map[string]udisks.Object),
	}
	for _, o := range objects {
		ix.byPath[o.Path] = o
		if o.Block != nil {
			ix.byDevice[o.Block.Device] = o
		}
	}
	return ix
}

// Build assembles the volume tree for one disk from the same object
// snapshot the disk was enumerated from.
//
// The root node represents the disk's own block device. For a partitioned
// disk its children are the partitions in start-offset order; an
// unpartitioned disk is classified directly (it may itself be a container,
// a physical volume or a bare filesystem).
func Build(disk model.DiskRecord, objects []udisks.Object) *model.VolumeNode {
	ix := newIndex(objects)
	visited := map[string]bool{}

	obj, ok := ix.byPath[disk.ObjectPath]
	if !ok {
		// Disk vanished between enumeration and build.
		return &model.VolumeNode{
			Device:     disk.Device,
			ObjectPath: disk.ObjectPath,
			Kind:       model.KindBlock,
			Size:       disk.Size,
			Unresolved: true,
		}
	}

	parts := partitionObjects(disk.ObjectPath, objects)
	if len(parts) == 0 {
		return buildNode(obj, "", model.KindBlock, ix, visited)
	}

	root := &model.VolumeNode{
		Device:     disk.Device,
		ObjectPath: disk.ObjectPath,
		Kind:       model.KindBlock,
		Size:       disk.Size,
	}
	visited[disk.ObjectPath] = true
	for _, p := range parts {
		root.Children = append(root.Children, buildNode(p, disk.ObjectPath, model.KindPartition, ix, visited))
	}
	return root
}

// Partitions extracts the disk's partition records in start-offset order,
// for the segmentation engine. Geometry is passed through unchecked; the
// segmentation engine owns anomaly detection.
func Partitions(disk model.DiskRecord, objects []udisks.Object) []model.PartitionRecord {
	var recs []model.PartitionRecord
	for _, o := range partitionObjects(disk.ObjectPath, objects) {
		rec := model.PartitionRecord{
			Disk:       disk.Device,
			Device:     o.Block.Device,
			ObjectPath: o.Path,
			Number:     o.Partition.Number,
			Offset:     o.Partition.Offset,
			Size:       o.Partition.Size,
			TypeID:     o.Partition.Type,
			Flags:      o.Partition.Flags,
			FSType:     o.Block.IDType,
		}
		recs = append(recs, rec)
	}
	return recs
}

func partitionObjects(tablePath string, objects []udisks.Object) []udisks.Object {
	var parts []udisks.Object
	for _, o := range objects {
		if o.Partition != nil && o.Block != nil && o.Partition.Table == tablePath {
			parts = append(parts, o)
		}
	}
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].Partition.Offset < parts[j].Partition.Offset
	})
	return parts
}

// buildNode classifies one block object and recurses into whatever is
// nested beneath it. fallback is the kind to use when no capability
// matches: KindPartition for table entries, KindLVMLV for mapped logical
// volumes, KindBlock otherwise.
func buildNode(obj udisks.Object, parentPath string, fallback model.NodeKind, ix *index, visited map[string]bool) *model.VolumeNode {
	if visited[obj.Path] {
		// Cyclic reference in the service metadata; refuse to recurse.
		return unresolvedNode(obj.Path, parentPath)
	}
	visited[obj.Path] = true

	n := &model.VolumeNode{
		ObjectPath: obj.Path,
		ParentPath: parentPath,
	}
	if obj.Block != nil {
		n.Device = obj.Block.Device
		n.Size = obj.Block.Size
		n.Label = obj.Block.IDLabel
		n.FSType = obj.Block.IDType
	}

	switch {
	case obj.Encrypted != nil:
		buildCrypto(n, obj, ix, visited)
	case obj.PhysicalVolume != nil:
		buildPhysicalVolume(n, obj, ix, visited)
	case obj.Filesystem != nil:
		n.Kind = model.KindFilesystem
		n.Mountable = true
		n.MountPoints = obj.Filesystem.MountPoints
	default:
		n.Kind = fallback
	}
	return n
}

// buildCrypto fills in an encrypted-container node. An unlocked container
// has exactly one child, the cleartext device; a locked one has none.
func buildCrypto(n *model.VolumeNode, obj udisks.Object, ix *index, visited map[string]bool) {
	n.Kind = model.KindCrypto

	cleartext := obj.Encrypted.CleartextDevice
	if cleartext == "" || cleartext == "/" {
		n.Locked = true
		return
	}

	child, ok := ix.byPath[cleartext]
	if !ok {
		// Cleartext reference points at a vanished object.
		n.Children = append(n.Children, unresolvedNode(cleartext, obj.Path))
		return
	}
	n.Children = append(n.Children, buildNode(child, obj.Path, model.KindBlock, ix, visited))
}

// buildPhysicalVolume fills in an LVM physical-volume node. Children are
// the volume group's logical volumes; the LV enumeration is best-effort,
// and an LV without a mapped block object is still listed, name and size
// only, non-mountable.
func buildPhysicalVolume(n *model.VolumeNode, obj udisks.Object, ix *index, visited map[string]bool) {
	n.Kind = model.KindLVMPV

	group := obj.PhysicalVolume.VolumeGroup
	if group == "" || group == "/" {
		return
	}

	var lvs []udisks.Object
	for _, o := range ix.byPath {
		if o.LogicalVolume != nil && o.LogicalVolume.VolumeGroup == group {
			lvs = append(lvs, o)
		}
	}
	sort.Slice(lvs, func(i, j int) bool {
		return lvs[i].LogicalVolume.Name < lvs[j].LogicalVolume.Name
	})

	for _, lv := range lvs {
		block, ok := ix.byDevice[lv.LogicalVolume.Device]
		if lv.LogicalVolume.Device == "" || !ok {
			// Unmapped LV: listed but not addressable.
			n.Children = append(n.Children, &model.VolumeNode{
				ObjectPath: lv.Path,
				Kind:       model.KindLVMLV,
				Label:      lv.LogicalVolume.Name,
				Size:       lv.LogicalVolume.Size,
				ParentPath: obj.Path,
			})
			continue
		}
		child := buildNode(block, obj.Path, model.KindLVMLV, ix, visited)
		if child.Label == "" {
			child.Label = lv.LogicalVolume.Name
		}
		n.Children = append(n.Children, child)
	}
}

func unresolvedNode(path, parentPath string) *model.VolumeNode {
	return &model.VolumeNode{
		ObjectPath: path,
		Kind:       model.KindBlock,
		Unresolved: true,
		ParentPath: parentPath,
	}
}
