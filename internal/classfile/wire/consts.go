// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package wire

// Magic is the four-byte signature every classfile begins with.
const Magic = 0xCAFEBABE

// Major version bounds the core accepts (§6). MinSupportedMajor is the
// lower bound (v45, the earliest JVM Spec §4 release); DefaultMaxMajor is
// the default upper bound (v69) used when ParseOptions.MaxMajorVersion is
// left at zero.
const (
	MinSupportedMajor = 45
	DefaultMaxMajor   = 69

	// MajorRecords is the first major version that permits the Record
	// attribute and record components (§3).
	MajorRecords = 58

	// MajorPermittedSubclasses is the first major version that permits the
	// PermittedSubclasses attribute (§3).
	MajorPermittedSubclasses = 59

	// MajorRequiresFrames is the first major version at and above which a
	// method with Code must carry valid stack-map frames (§4.4 strategy
	// selection: "classes at v1.7+ require valid frames").
	MajorRequiresFrames = 51
)

// AccessFlags is the class/field/method/inner-class access_flags bitmask.
type AccessFlags uint16

// Access flag bits shared across classes, fields, methods and nested
// classes; not every bit is legal on every target (e.g. ACC_SUPER only
// applies to classes), left to the caller/spec rather than enforced here.
const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccOpen         AccessFlags = 0x0020
	AccTransitive   AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccStaticPhase  AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccMandated     AccessFlags = 0x8000
	AccModule       AccessFlags = 0x8000
)

// Has reports whether every bit in mask is set.
func (a AccessFlags) Has(mask AccessFlags) bool { return a&mask == mask }

// Tag identifies a constant pool entry's structural kind (§3).
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger             Tag = 3
	TagFloat               Tag = 4
	TagLong                Tag = 5
	TagDouble              Tag = 6
	TagClass               Tag = 7
	TagString              Tag = 8
	TagFieldref            Tag = 9
	TagMethodref           Tag = 10
	TagInterfaceMethodref  Tag = 11
	TagNameAndType         Tag = 12
	TagMethodHandle        Tag = 15
	TagMethodType          Tag = 16
	TagDynamic             Tag = 17
	TagInvokeDynamic       Tag = 18
	TagModule              Tag = 19
	TagPackage             Tag = 20
)

// ReferenceKind enumerates the MethodHandle kinds (1..9, §3).
type ReferenceKind uint8

const (
	RefGetField         ReferenceKind = 1
	RefGetStatic        ReferenceKind = 2
	RefPutField         ReferenceKind = 3
	RefPutStatic        ReferenceKind = 4
	RefInvokeVirtual    ReferenceKind = 5
	RefInvokeStatic     ReferenceKind = 6
	RefInvokeSpecial    ReferenceKind = 7
	RefNewInvokeSpecial ReferenceKind = 8
	RefInvokeInterface  ReferenceKind = 9
)

// Standard attribute names (§3), used both by the default AttributeCodec
// registrations and by the Parser/Writer's own structural handling of Code
// and StackMapTable.
const (
	AttrConstantValue                        = "ConstantValue"
	AttrCode                                  = "Code"
	AttrStackMapTable                         = "StackMapTable"
	AttrExceptions                            = "Exceptions"
	AttrInnerClasses                          = "InnerClasses"
	AttrEnclosingMethod                       = "EnclosingMethod"
	AttrSynthetic                             = "Synthetic"
	AttrSignature                             = "Signature"
	AttrSourceFile                            = "SourceFile"
	AttrSourceDebugExtension                  = "SourceDebugExtension"
	AttrLineNumberTable                       = "LineNumberTable"
	AttrLocalVariableTable                    = "LocalVariableTable"
	AttrLocalVariableTypeTable                = "LocalVariableTypeTable"
	AttrDeprecated                            = "Deprecated"
	AttrRuntimeVisibleAnnotations             = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations           = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations    = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations  = "RuntimeInvisibleParameterAnnotations"
	AttrRuntimeVisibleTypeAnnotations         = "RuntimeVisibleTypeAnnotations"
	AttrRuntimeInvisibleTypeAnnotations       = "RuntimeInvisibleTypeAnnotations"
	AttrAnnotationDefault                     = "AnnotationDefault"
	AttrBootstrapMethods                      = "BootstrapMethods"
	AttrMethodParameters                      = "MethodParameters"
	AttrModule                                = "Module"
	AttrModulePackages                        = "ModulePackages"
	AttrModuleMainClass                       = "ModuleMainClass"
	AttrNestHost                              = "NestHost"
	AttrNestMembers                           = "NestMembers"
	AttrRecord                                = "Record"
	AttrPermittedSubclasses                   = "PermittedSubclasses"
)
