package pmx

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// RigidShape is the collision shape of a rigid body.
type RigidShape uint8

const (
	RIGID_SHAPE_SPHERE  RigidShape = 0
	RIGID_SHAPE_BOX     RigidShape = 1
	RIGID_SHAPE_CAPSULE RigidShape = 2
)

// RigidMode says who drives whom: the bone the body, or the body the
// bone.
type RigidMode uint8

const (
	// RIGID_MODE_STATIC pins the body to its bone.
	RIGID_MODE_STATIC RigidMode = 0

	// RIGID_MODE_DYNAMIC hands the body to the physics engine.
	RIGID_MODE_DYNAMIC RigidMode = 1

	// RIGID_MODE_DYNAMIC_BONE simulates like DYNAMIC but pins the
	// body position to the bone, keeping only simulated rotation.
	RIGID_MODE_DYNAMIC_BONE RigidMode = 2
)

type RigidBody struct {
	Name   string
	NameEN string

	Bone int32 // NoIndex for free bodies

	// Group is the collision group 0..15; GroupMask has one bit per
	// group this body does not collide with.
	Group     uint8
	GroupMask uint16

	Shape RigidShape

	// Size is radius/extents depending on Shape; unused components
	// are whatever the authoring tool left there.
	Size     mgl32.Vec3
	Position mgl32.Vec3
	Rotation mgl32.Vec3

	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	Restitution    float32
	Friction       float32

	Mode RigidMode
}

// JointKind is the Bullet constraint variant. Everything except
// JOINT_SPRING_6DOF is a version 2.1 addition.
type JointKind uint8

const (
	JOINT_SPRING_6DOF JointKind = 0
	JOINT_6DOF        JointKind = 1
	JOINT_P2P         JointKind = 2
	JOINT_CONE_TWIST  JointKind = 3
	JOINT_SLIDER      JointKind = 4
	JOINT_HINGE       JointKind = 5
)

// Joint links two rigid bodies. Every kind shares the spring 6DOF
// payload on the wire; kinds that need less simply ignore fields.
type Joint struct {
	Name   string
	NameEN string

	Kind   JointKind
	RigidA int32
	RigidB int32

	Position mgl32.Vec3
	Rotation mgl32.Vec3

	LinearLower  mgl32.Vec3
	LinearUpper  mgl32.Vec3
	AngularLower mgl32.Vec3
	AngularUpper mgl32.Vec3

	LinearSpring  mgl32.Vec3
	AngularSpring mgl32.Vec3
}

// SoftBodyShape is the simulation topology of a soft body.
type SoftBodyShape uint8

const (
	SOFT_BODY_TRI_MESH SoftBodyShape = 0
	SOFT_BODY_ROPE     SoftBodyShape = 1
)

// Soft body flag bits.
const (
	SOFT_BODY_FLAG_B_LINK      uint8 = 0x01
	SOFT_BODY_FLAG_CLUSTERS    uint8 = 0x02
	SOFT_BODY_FLAG_HYBRID_LINK uint8 = 0x04
)

// AeroModel is the Bullet aerodynamics model index.
type AeroModel int32

const (
	AERO_V_POINT     AeroModel = 0
	AERO_V_TWO_SIDED AeroModel = 1
	AERO_V_ONE_SIDED AeroModel = 2
	AERO_F_TWO_SIDED AeroModel = 3
	AERO_F_ONE_SIDED AeroModel = 4
)

// SoftBodyConfig is the Bullet btSoftBody config block, in wire order.
// The field names follow the Bullet ones.
type SoftBodyConfig struct {
	VCF float32 // velocity correction factor
	DP  float32 // damping
	DG  float32 // drag
	LF  float32 // lift
	PR  float32 // pressure
	VC  float32 // volume conservation
	DF  float32 // dynamic friction
	MT  float32 // pose matching
	CHR float32 // rigid contact hardness
	KHR float32 // kinetic contact hardness
	SHR float32 // soft contact hardness
	AHR float32 // anchor hardness
}

// SoftBodyCluster is the cluster hardness/impulse split block, in
// wire order (the Bullet *_CL parameters).
type SoftBodyCluster struct {
	SRHR    float32
	SKHR    float32
	SSHR    float32
	SRSplit float32
	SKSplit float32
	SSSplit float32
}

// SoftBodyIteration is the solver iteration counts.
type SoftBodyIteration struct {
	Velocity int32
	Position int32
	Drift    int32
	Cluster  int32
}

// SoftBodyMaterial is the stiffness coefficient block (LST/AST/VST).
type SoftBodyMaterial struct {
	Linear  float32
	Angular float32
	Volume  float32
}

// SoftBodyAnchor welds a soft body vertex to a rigid body.
type SoftBodyAnchor struct {
	RigidBody int32
	Vertex    int32

	// Near attaches to the nearest surface point instead of the
	// body origin.
	Near bool
}

// SoftBody is the version 2.1 cloth/rope section.
type SoftBody struct {
	Name   string
	NameEN string

	Shape    SoftBodyShape
	Material int32

	Group     uint8
	GroupMask uint16

	Flags uint8

	// BLinkDistance is the b-link creation distance in cluster units.
	BLinkDistance int32
	ClusterCount  int32

	TotalMass float32
	Margin    float32

	AeroModel AeroModel

	Config    SoftBodyConfig
	Cluster   SoftBodyCluster
	Iteration SoftBodyIteration
	Stiffness SoftBodyMaterial

	Anchors []SoftBodyAnchor
	Pins    []int32
}

func (d *Decoder) readRigidBodies(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("rigid bodies: %d", n)
	m.RigidBodies = make([]RigidBody, n)
	for i := range m.RigidBodies {
		if err := d.readRigidBody(&m.RigidBodies[i]); err != nil {
			return errors.WithMessagef(err, "rigid body %d", i)
		}
	}
	return nil
}

func (d *Decoder) readRigidBody(rb *RigidBody) error {
	var err error
	if rb.Name, err = d.r.text(); err != nil {
		return err
	}
	if rb.NameEN, err = d.r.text(); err != nil {
		return err
	}
	if rb.Bone, err = d.r.index(d.r.hdr.BoneIndexSize); err != nil {
		return err
	}
	if rb.Group, err = d.r.u8(); err != nil {
		return err
	}
	if rb.GroupMask, err = d.r.u16(); err != nil {
		return err
	}
	shape, err := d.r.u8()
	if err != nil {
		return err
	}
	if shape > uint8(RIGID_SHAPE_CAPSULE) {
		return errors.Wrapf(ErrMalformedSection, "unknown rigid shape %d", shape)
	}
	rb.Shape = RigidShape(shape)
	if rb.Size, err = d.r.vec3(); err != nil {
		return err
	}
	if rb.Position, err = d.r.vec3(); err != nil {
		return err
	}
	if rb.Rotation, err = d.r.vec3(); err != nil {
		return err
	}
	if rb.Mass, err = d.r.f32(); err != nil {
		return err
	}
	if rb.LinearDamping, err = d.r.f32(); err != nil {
		return err
	}
	if rb.AngularDamping, err = d.r.f32(); err != nil {
		return err
	}
	if rb.Restitution, err = d.r.f32(); err != nil {
		return err
	}
	if rb.Friction, err = d.r.f32(); err != nil {
		return err
	}
	mode, err := d.r.u8()
	if err != nil {
		return err
	}
	if mode > uint8(RIGID_MODE_DYNAMIC_BONE) {
		return errors.Wrapf(ErrMalformedSection, "unknown rigid mode %d", mode)
	}
	rb.Mode = RigidMode(mode)
	return nil
}

func (e *Encoder) writeRigidBodies(m *Model) error {
	if err := e.w.count(len(m.RigidBodies)); err != nil {
		return err
	}
	for i := range m.RigidBodies {
		if err := e.writeRigidBody(&m.RigidBodies[i]); err != nil {
			return errors.WithMessagef(err, "rigid body %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeRigidBody(rb *RigidBody) error {
	if err := e.w.text(rb.Name); err != nil {
		return err
	}
	if err := e.w.text(rb.NameEN); err != nil {
		return err
	}
	if err := e.w.index(e.w.hdr.BoneIndexSize, rb.Bone); err != nil {
		return err
	}
	if err := e.w.u8(rb.Group); err != nil {
		return err
	}
	if err := e.w.u16(rb.GroupMask); err != nil {
		return err
	}
	if err := e.w.u8(uint8(rb.Shape)); err != nil {
		return err
	}
	if err := e.w.vec3(rb.Size); err != nil {
		return err
	}
	if err := e.w.vec3(rb.Position); err != nil {
		return err
	}
	if err := e.w.vec3(rb.Rotation); err != nil {
		return err
	}
	if err := e.w.f32(rb.Mass); err != nil {
		return err
	}
	if err := e.w.f32(rb.LinearDamping); err != nil {
		return err
	}
	if err := e.w.f32(rb.AngularDamping); err != nil {
		return err
	}
	if err := e.w.f32(rb.Restitution); err != nil {
		return err
	}
	if err := e.w.f32(rb.Friction); err != nil {
		return err
	}
	return e.w.u8(uint8(rb.Mode))
}

func (d *Decoder) readJoints(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("joints: %d", n)
	m.Joints = make([]Joint, n)
	for i := range m.Joints {
		if err := d.readJoint(&m.Joints[i]); err != nil {
			return errors.WithMessagef(err, "joint %d", i)
		}
	}
	return nil
}

func (d *Decoder) readJoint(j *Joint) error {
	var err error
	if j.Name, err = d.r.text(); err != nil {
		return err
	}
	if j.NameEN, err = d.r.text(); err != nil {
		return err
	}
	kind, err := d.r.u8()
	if err != nil {
		return err
	}
	if kind > uint8(JOINT_HINGE) {
		return errors.Wrapf(ErrMalformedSection, "unknown joint kind %d", kind)
	}
	j.Kind = JointKind(kind)
	sz := d.r.hdr.RigidIndexSize
	if j.RigidA, err = d.r.index(sz); err != nil {
		return err
	}
	if j.RigidB, err = d.r.index(sz); err != nil {
		return err
	}
	if j.Position, err = d.r.vec3(); err != nil {
		return err
	}
	if j.Rotation, err = d.r.vec3(); err != nil {
		return err
	}
	if j.LinearLower, err = d.r.vec3(); err != nil {
		return err
	}
	if j.LinearUpper, err = d.r.vec3(); err != nil {
		return err
	}
	if j.AngularLower, err = d.r.vec3(); err != nil {
		return err
	}
	if j.AngularUpper, err = d.r.vec3(); err != nil {
		return err
	}
	if j.LinearSpring, err = d.r.vec3(); err != nil {
		return err
	}
	j.AngularSpring, err = d.r.vec3()
	return err
}

func (e *Encoder) writeJoints(m *Model) error {
	if err := e.w.count(len(m.Joints)); err != nil {
		return err
	}
	for i := range m.Joints {
		if err := e.writeJoint(&m.Joints[i]); err != nil {
			return errors.WithMessagef(err, "joint %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeJoint(j *Joint) error {
	if err := e.w.text(j.Name); err != nil {
		return err
	}
	if err := e.w.text(j.NameEN); err != nil {
		return err
	}
	if err := e.w.u8(uint8(j.Kind)); err != nil {
		return err
	}
	sz := e.w.hdr.RigidIndexSize
	if err := e.w.index(sz, j.RigidA); err != nil {
		return err
	}
	if err := e.w.index(sz, j.RigidB); err != nil {
		return err
	}
	if err := e.w.vec3(j.Position); err != nil {
		return err
	}
	if err := e.w.vec3(j.Rotation); err != nil {
		return err
	}
	if err := e.w.vec3(j.LinearLower); err != nil {
		return err
	}
	if err := e.w.vec3(j.LinearUpper); err != nil {
		return err
	}
	if err := e.w.vec3(j.AngularLower); err != nil {
		return err
	}
	if err := e.w.vec3(j.AngularUpper); err != nil {
		return err
	}
	if err := e.w.vec3(j.LinearSpring); err != nil {
		return err
	}
	return e.w.vec3(j.AngularSpring)
}

// readSoftBodies is a no-op before version 2.1; the section does not
// exist in older files.
func (d *Decoder) readSoftBodies(m *Model) error {
	if !d.r.hdr.hasSoftBodies() {
		return nil
	}
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("soft bodies: %d", n)
	m.SoftBodies = make([]SoftBody, n)
	for i := range m.SoftBodies {
		if err := d.readSoftBody(&m.SoftBodies[i]); err != nil {
			return errors.WithMessagef(err, "soft body %d", i)
		}
	}
	return nil
}

func (d *Decoder) readSoftBody(sb *SoftBody) error {
	var err error
	if sb.Name, err = d.r.text(); err != nil {
		return err
	}
	if sb.NameEN, err = d.r.text(); err != nil {
		return err
	}
	shape, err := d.r.u8()
	if err != nil {
		return err
	}
	if shape > uint8(SOFT_BODY_ROPE) {
		return errors.Wrapf(ErrMalformedSection, "unknown soft body shape %d", shape)
	}
	sb.Shape = SoftBodyShape(shape)
	if sb.Material, err = d.r.index(d.r.hdr.MaterialIndexSize); err != nil {
		return err
	}
	if sb.Group, err = d.r.u8(); err != nil {
		return err
	}
	if sb.GroupMask, err = d.r.u16(); err != nil {
		return err
	}
	if sb.Flags, err = d.r.u8(); err != nil {
		return err
	}
	if sb.BLinkDistance, err = d.r.i32(); err != nil {
		return err
	}
	if sb.ClusterCount, err = d.r.i32(); err != nil {
		return err
	}
	if sb.TotalMass, err = d.r.f32(); err != nil {
		return err
	}
	if sb.Margin, err = d.r.f32(); err != nil {
		return err
	}
	aero, err := d.r.i32()
	if err != nil {
		return err
	}
	if aero < int32(AERO_V_POINT) || aero > int32(AERO_F_ONE_SIDED) {
		return errors.Wrapf(ErrMalformedSection, "unknown aero model %d", aero)
	}
	sb.AeroModel = AeroModel(aero)
	for _, f := range []*float32{
		&sb.Config.VCF, &sb.Config.DP, &sb.Config.DG, &sb.Config.LF,
		&sb.Config.PR, &sb.Config.VC, &sb.Config.DF, &sb.Config.MT,
		&sb.Config.CHR, &sb.Config.KHR, &sb.Config.SHR, &sb.Config.AHR,
		&sb.Cluster.SRHR, &sb.Cluster.SKHR, &sb.Cluster.SSHR,
		&sb.Cluster.SRSplit, &sb.Cluster.SKSplit, &sb.Cluster.SSSplit,
	} {
		if *f, err = d.r.f32(); err != nil {
			return err
		}
	}
	for _, v := range []*int32{
		&sb.Iteration.Velocity, &sb.Iteration.Position,
		&sb.Iteration.Drift, &sb.Iteration.Cluster,
	} {
		if *v, err = d.r.i32(); err != nil {
			return err
		}
	}
	for _, f := range []*float32{
		&sb.Stiffness.Linear, &sb.Stiffness.Angular, &sb.Stiffness.Volume,
	} {
		if *f, err = d.r.f32(); err != nil {
			return err
		}
	}
	na, err := d.r.count()
	if err != nil {
		return err
	}
	sb.Anchors = make([]SoftBodyAnchor, na)
	for i := range sb.Anchors {
		a := &sb.Anchors[i]
		if a.RigidBody, err = d.r.index(d.r.hdr.RigidIndexSize); err != nil {
			return err
		}
		if a.Vertex, err = d.r.uindex(d.r.hdr.VertexIndexSize); err != nil {
			return err
		}
		if a.Near, err = d.r.bool8(); err != nil {
			return errors.WithMessagef(err, "anchor %d", i)
		}
	}
	np, err := d.r.count()
	if err != nil {
		return err
	}
	sb.Pins = make([]int32, np)
	for i := range sb.Pins {
		if sb.Pins[i], err = d.r.uindex(d.r.hdr.VertexIndexSize); err != nil {
			return err
		}
	}
	return nil
}

// writeSoftBodies emits nothing before version 2.1, even when the
// model carries soft bodies; validation rejects that combination
// before it gets here.
func (e *Encoder) writeSoftBodies(m *Model) error {
	if !e.w.hdr.hasSoftBodies() {
		return nil
	}
	if err := e.w.count(len(m.SoftBodies)); err != nil {
		return err
	}
	for i := range m.SoftBodies {
		if err := e.writeSoftBody(&m.SoftBodies[i]); err != nil {
			return errors.WithMessagef(err, "soft body %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeSoftBody(sb *SoftBody) error {
	if err := e.w.text(sb.Name); err != nil {
		return err
	}
	if err := e.w.text(sb.NameEN); err != nil {
		return err
	}
	if err := e.w.u8(uint8(sb.Shape)); err != nil {
		return err
	}
	if err := e.w.index(e.w.hdr.MaterialIndexSize, sb.Material); err != nil {
		return err
	}
	if err := e.w.u8(sb.Group); err != nil {
		return err
	}
	if err := e.w.u16(sb.GroupMask); err != nil {
		return err
	}
	if err := e.w.u8(sb.Flags); err != nil {
		return err
	}
	if err := e.w.i32(sb.BLinkDistance); err != nil {
		return err
	}
	if err := e.w.i32(sb.ClusterCount); err != nil {
		return err
	}
	if err := e.w.f32(sb.TotalMass); err != nil {
		return err
	}
	if err := e.w.f32(sb.Margin); err != nil {
		return err
	}
	if err := e.w.i32(int32(sb.AeroModel)); err != nil {
		return err
	}
	for _, f := range []float32{
		sb.Config.VCF, sb.Config.DP, sb.Config.DG, sb.Config.LF,
		sb.Config.PR, sb.Config.VC, sb.Config.DF, sb.Config.MT,
		sb.Config.CHR, sb.Config.KHR, sb.Config.SHR, sb.Config.AHR,
		sb.Cluster.SRHR, sb.Cluster.SKHR, sb.Cluster.SSHR,
		sb.Cluster.SRSplit, sb.Cluster.SKSplit, sb.Cluster.SSSplit,
	} {
		if err := e.w.f32(f); err != nil {
			return err
		}
	}
	for _, v := range []int32{
		sb.Iteration.Velocity, sb.Iteration.Position,
		sb.Iteration.Drift, sb.Iteration.Cluster,
	} {
		if err := e.w.i32(v); err != nil {
			return err
		}
	}
	for _, f := range []float32{
		sb.Stiffness.Linear, sb.Stiffness.Angular, sb.Stiffness.Volume,
	} {
		if err := e.w.f32(f); err != nil {
			return err
		}
	}
	if err := e.w.count(len(sb.Anchors)); err != nil {
		return err
	}
	for i := range sb.Anchors {
		a := &sb.Anchors[i]
		if err := e.w.index(e.w.hdr.RigidIndexSize, a.RigidBody); err != nil {
			return err
		}
		if err := e.w.uindex(e.w.hdr.VertexIndexSize, a.Vertex); err != nil {
			return err
		}
		if err := e.w.bool8(a.Near); err != nil {
			return err
		}
	}
	if err := e.w.count(len(sb.Pins)); err != nil {
		return err
	}
	for _, p := range sb.Pins {
		if err := e.w.uindex(e.w.hdr.VertexIndexSize, p); err != nil {
			return err
		}
	}
	return nil
}
