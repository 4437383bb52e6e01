package classfile

import "github.com/classfile/classfile/internal/classfile/wire"

// Tag, AccessFlags, ReferenceKind and Opcode are defined in the internal
// wire package (shared by the Parser, Writer and the symtab/cfg/frame
// subsystems so that none of them needs to import this root package) and
// re-exported here as the public vocabulary of the library.
type (
	Tag           = wire.Tag
	AccessFlags   = wire.AccessFlags
	ReferenceKind = wire.ReferenceKind
	Opcode        = wire.Opcode
)

const (
	Magic             = wire.Magic
	MinSupportedMajor = wire.MinSupportedMajor
	DefaultMaxMajor   = wire.DefaultMaxMajor
	MajorRecords      = wire.MajorRecords

	MajorPermittedSubclasses = wire.MajorPermittedSubclasses
	MajorRequiresFrames      = wire.MajorRequiresFrames
)

const (
	TagUtf8              = wire.TagUtf8
	TagInteger           = wire.TagInteger
	TagFloat             = wire.TagFloat
	TagLong              = wire.TagLong
	TagDouble            = wire.TagDouble
	TagClass             = wire.TagClass
	TagString            = wire.TagString
	TagFieldref          = wire.TagFieldref
	TagMethodref         = wire.TagMethodref
	TagInterfaceMethodref = wire.TagInterfaceMethodref
	TagNameAndType       = wire.TagNameAndType
	TagMethodHandle      = wire.TagMethodHandle
	TagMethodType        = wire.TagMethodType
	TagDynamic           = wire.TagDynamic
	TagInvokeDynamic     = wire.TagInvokeDynamic
	TagModule            = wire.TagModule
	TagPackage           = wire.TagPackage
)

const (
	RefGetField         = wire.RefGetField
	RefGetStatic        = wire.RefGetStatic
	RefPutField         = wire.RefPutField
	RefPutStatic        = wire.RefPutStatic
	RefInvokeVirtual    = wire.RefInvokeVirtual
	RefInvokeStatic     = wire.RefInvokeStatic
	RefInvokeSpecial    = wire.RefInvokeSpecial
	RefNewInvokeSpecial = wire.RefNewInvokeSpecial
	RefInvokeInterface  = wire.RefInvokeInterface
)

const (
	AccPublic       = wire.AccPublic
	AccPrivate      = wire.AccPrivate
	AccProtected    = wire.AccProtected
	AccStatic       = wire.AccStatic
	AccFinal        = wire.AccFinal
	AccSuper        = wire.AccSuper
	AccSynchronized = wire.AccSynchronized
	AccBridge       = wire.AccBridge
	AccVarargs      = wire.AccVarargs
	AccNative       = wire.AccNative
	AccInterface    = wire.AccInterface
	AccAbstract     = wire.AccAbstract
	AccStrict       = wire.AccStrict
	AccSynthetic    = wire.AccSynthetic
	AccAnnotation   = wire.AccAnnotation
	AccEnum         = wire.AccEnum
	AccMandated     = wire.AccMandated
	AccModule       = wire.AccModule
)

// Standard attribute names (§3).
const (
	AttrConstantValue                       = wire.AttrConstantValue
	AttrCode                                 = wire.AttrCode
	AttrStackMapTable                        = wire.AttrStackMapTable
	AttrExceptions                           = wire.AttrExceptions
	AttrInnerClasses                         = wire.AttrInnerClasses
	AttrEnclosingMethod                      = wire.AttrEnclosingMethod
	AttrSynthetic                            = wire.AttrSynthetic
	AttrSignature                            = wire.AttrSignature
	AttrSourceFile                           = wire.AttrSourceFile
	AttrSourceDebugExtension                 = wire.AttrSourceDebugExtension
	AttrLineNumberTable                      = wire.AttrLineNumberTable
	AttrLocalVariableTable                   = wire.AttrLocalVariableTable
	AttrLocalVariableTypeTable               = wire.AttrLocalVariableTypeTable
	AttrDeprecated                           = wire.AttrDeprecated
	AttrRuntimeVisibleAnnotations            = wire.AttrRuntimeVisibleAnnotations
	AttrRuntimeInvisibleAnnotations          = wire.AttrRuntimeInvisibleAnnotations
	AttrRuntimeVisibleParameterAnnotations   = wire.AttrRuntimeVisibleParameterAnnotations
	AttrRuntimeInvisibleParameterAnnotations = wire.AttrRuntimeInvisibleParameterAnnotations
	AttrRuntimeVisibleTypeAnnotations        = wire.AttrRuntimeVisibleTypeAnnotations
	AttrRuntimeInvisibleTypeAnnotations      = wire.AttrRuntimeInvisibleTypeAnnotations
	AttrAnnotationDefault                    = wire.AttrAnnotationDefault
	AttrBootstrapMethods                     = wire.AttrBootstrapMethods
	AttrMethodParameters                     = wire.AttrMethodParameters
	AttrModule                               = wire.AttrModule
	AttrModulePackages                       = wire.AttrModulePackages
	AttrModuleMainClass                      = wire.AttrModuleMainClass
	AttrNestHost                             = wire.AttrNestHost
	AttrNestMembers                          = wire.AttrNestMembers
	AttrRecord                               = wire.AttrRecord
	AttrPermittedSubclasses                  = wire.AttrPermittedSubclasses
)

const (
	OpNop              = wire.OpNop
	OpAConstNull       = wire.OpAConstNull
	OpIConstM1         = wire.OpIConstM1
	OpIConst0          = wire.OpIConst0
	OpIConst1          = wire.OpIConst1
	OpBipush           = wire.OpBipush
	OpSipush           = wire.OpSipush
	OpLdc              = wire.OpLdc
	OpLdcW             = wire.OpLdcW
	OpLdc2W            = wire.OpLdc2W
	OpILoad            = wire.OpILoad
	OpALoad            = wire.OpALoad
	OpIStore           = wire.OpIStore
	OpAStore           = wire.OpAStore
	OpIInc             = wire.OpIInc
	OpIfEq             = wire.OpIfEq
	OpIfNe             = wire.OpIfNe
	OpGoto             = wire.OpGoto
	OpJsr              = wire.OpJsr
	OpRet              = wire.OpRet
	OpTableSwitch      = wire.OpTableSwitch
	OpLookupSwitch     = wire.OpLookupSwitch
	OpIReturn          = wire.OpIReturn
	OpReturn           = wire.OpReturn
	OpGetStatic        = wire.OpGetStatic
	OpPutStatic        = wire.OpPutStatic
	OpGetField         = wire.OpGetField
	OpPutField         = wire.OpPutField
	OpInvokeVirtual    = wire.OpInvokeVirtual
	OpInvokeSpecial    = wire.OpInvokeSpecial
	OpInvokeStatic     = wire.OpInvokeStatic
	OpInvokeInterface  = wire.OpInvokeInterface
	OpInvokeDynamic    = wire.OpInvokeDynamic
	OpNew              = wire.OpNew
	OpNewArray         = wire.OpNewArray
	OpANewArray        = wire.OpANewArray
	OpArrayLength      = wire.OpArrayLength
	OpAThrow           = wire.OpAThrow
	OpCheckCast        = wire.OpCheckCast
	OpInstanceOf       = wire.OpInstanceOf
	OpMonitorEnter     = wire.OpMonitorEnter
	OpMonitorExit      = wire.OpMonitorExit
	OpWide             = wire.OpWide
	OpMultiANewArray   = wire.OpMultiANewArray
	OpIfNull           = wire.OpIfNull
	OpIfNonNull        = wire.OpIfNonNull
	OpGotoW            = wire.OpGotoW
	OpJsrW             = wire.OpJsrW
	OpSynthGotoForward = wire.OpSynthGotoForward
	OpSynthIfForward   = wire.OpSynthIfForward
)
